package notification

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError:
		return true
	default:
		return false
	}
}

const (
	DefaultDuration = 5000 * time.Millisecond
	// ExpiryGrace is added to a notification's duration before the store
	// removes it, leaving room for the toast exit animation.
	ExpiryGrace = 300 * time.Millisecond
)

type Action struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

type Notification struct {
	Id         string        `json:"id"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	Kind       Kind          `json:"kind"`
	CreateTime time.Time     `json:"createTime"`
	Read       bool          `json:"read"`
	Duration   time.Duration `json:"-"`
	Action     *Action       `json:"action,omitempty"`
}

// Expires reports whether the notification has a bounded lifetime.
func (n Notification) Expires() bool {
	return n.Duration > 0
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification

	return json.Marshal(struct {
		alias
		DurationMs int64 `json:"durationMs"`
	}{
		alias:      alias(n),
		DurationMs: n.Duration.Milliseconds(),
	})
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification

	aux := struct {
		*alias
		DurationMs int64 `json:"durationMs"`
	}{
		alias: (*alias)(n),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	n.Duration = time.Duration(aux.DurationMs) * time.Millisecond

	return nil
}

func (n Notification) clone() Notification {
	if n.Action != nil {
		action := *n.Action
		n.Action = &action
	}

	return n
}

// Draft describes a notification to be added. Identifier, creation time and
// read flag are always assigned by the store.
type Draft struct {
	Title   string
	Message string
	Kind    Kind
	// Duration nil means DefaultDuration, zero means the notification never expires.
	Duration *time.Duration
	Action   *Action
}

// Patch holds the fields Update merges into an existing notification. Nil
// fields are left untouched.
type Patch struct {
	Title    *string
	Message  *string
	Kind     *Kind
	Read     *bool
	Duration *time.Duration
	Action   *Action
}

type State struct {
	Revision      uint64         `json:"revision"`
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// Find returns the notification with the given id.
func (s State) Find(id string) (Notification, bool) {
	for _, n := range s.Notifications {
		if n.Id == id {
			return n, true
		}
	}

	return Notification{}, false
}

// Newest returns up to limit notifications, newest first.
func (s State) Newest(limit int) []Notification {
	if limit >= len(s.Notifications) {
		return s.Notifications
	}

	return s.Notifications[:limit]
}

func Duration(d time.Duration) *time.Duration {
	return &d
}
