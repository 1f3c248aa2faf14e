package realtime

import (
	"errors"
	"strings"

	"github.com/goevery/courier/internal/ierr"
)

type Namespace string

const (
	NamespaceOrders        Namespace = "orders"
	NamespaceChat          Namespace = "chat"
	NamespaceRiderTracking Namespace = "rider-tracking"
	NamespaceRestaurant    Namespace = "restaurant"
	NamespaceNotifications Namespace = "notifications"
)

var Namespaces = []Namespace{
	NamespaceOrders,
	NamespaceChat,
	NamespaceRiderTracking,
	NamespaceRestaurant,
	NamespaceNotifications,
}

func (n Namespace) String() string {
	return string(n)
}

func ParseNamespace(value string) (Namespace, error) {
	for _, namespace := range Namespaces {
		if string(namespace) == value {
			return namespace, nil
		}
	}

	return "", ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("unknown namespace: "+value))
}

// Key builds the listener key "<namespace>:<event>".
func Key(namespace Namespace, event string) string {
	return string(namespace) + ":" + event
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (Namespace, string, bool) {
	namespace, event, ok := strings.Cut(key, ":")
	if !ok || namespace == "" || event == "" {
		return "", "", false
	}

	return Namespace(namespace), event, true
}
