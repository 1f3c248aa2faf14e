package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goevery/courier/internal/notification"
	"github.com/goevery/courier/internal/realtime"
	"go.uber.org/zap"
)

type Events interface {
	On(key string, listener realtime.Listener) *realtime.Subscription
	Off(key string, subscription *realtime.Subscription)
}

var riderEvents = map[realtime.ServerEvent]notification.RiderEvent{
	realtime.EventRiderAssigned:  notification.RiderEventAssigned,
	realtime.EventOrderPickedUp:  notification.RiderEventPickedUp,
	realtime.EventOrderDelivered: notification.RiderEventDelivered,
}

var restaurantEvents = map[realtime.ServerEvent]notification.RestaurantEvent{
	realtime.EventNewOrder:       notification.RestaurantEventNewOrder,
	realtime.EventOrderReady:     notification.RestaurantEventOrderReady,
	realtime.EventOrderCancelled: notification.RestaurantEventOrderCancelled,
}

var errUnexpectedPayload = errors.New("unexpected payload")

// Bridge turns inbound realtime events into notifications.
type Bridge struct {
	logger *zap.Logger
	events Events
	store  *notification.Store

	mu            sync.Mutex
	subscriptions []*realtime.Subscription
}

func New(logger *zap.Logger, events Events, store *notification.Store) *Bridge {
	return &Bridge{
		logger: logger,
		events: events,
		store:  store,
	}
}

// Start registers the bridge listeners. Calling it twice has no effect.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscriptions) > 0 {
		return
	}

	b.on(realtime.NamespaceOrders, realtime.EventOrderUpdate, b.orderUpdate)
	b.on(realtime.NamespaceOrders, realtime.EventOrderStatusChanged, b.orderUpdate)
	b.on(realtime.NamespaceOrders, realtime.EventPaymentUpdate, b.paymentUpdate)
	b.on(realtime.NamespaceChat, realtime.EventNewMessage, b.newMessage)
	b.on(realtime.NamespaceNotifications, realtime.EventNotification, b.pushNotification)

	for name := range riderEvents {
		b.on(realtime.NamespaceRiderTracking, name, b.riderUpdate)
		b.on(realtime.NamespaceOrders, name, b.riderUpdate)
	}

	for name := range restaurantEvents {
		b.on(realtime.NamespaceRestaurant, name, b.restaurantUpdate)
	}

	for _, namespace := range realtime.Namespaces {
		b.on(namespace, realtime.EventDisconnect, b.disconnect)
	}
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subscription := range b.subscriptions {
		b.events.Off(subscription.Key(), subscription)
	}

	b.subscriptions = nil
}

func (b *Bridge) on(namespace realtime.Namespace, event realtime.ServerEvent, listener realtime.Listener) {
	key := realtime.Key(namespace, string(event))
	b.subscriptions = append(b.subscriptions, b.events.On(key, listener))
}

func (b *Bridge) orderUpdate(event realtime.Event) error {
	update, ok := event.Payload.(realtime.OrderUpdate)
	if !ok {
		return fmt.Errorf("%s: %w", event.Key(), errUnexpectedPayload)
	}

	b.store.AddOrderNotification(update.OrderId.String(), notification.OrderStatus(update.Status), update.RestaurantName)

	return nil
}

func (b *Bridge) paymentUpdate(event realtime.Event) error {
	update, ok := event.Payload.(realtime.PaymentUpdate)
	if !ok {
		return fmt.Errorf("%s: %w", event.Key(), errUnexpectedPayload)
	}

	b.store.AddPaymentNotification(update.PaymentId.String(), notification.PaymentStatus(update.Status), update.Amount)

	return nil
}

func (b *Bridge) newMessage(event realtime.Event) error {
	message, ok := event.Payload.(realtime.ChatMessage)
	if !ok {
		return fmt.Errorf("%s: %w", event.Key(), errUnexpectedPayload)
	}

	b.store.AddChatNotification(message.OrderId.String(), message.SenderName, message.Message)

	return nil
}

func (b *Bridge) riderUpdate(event realtime.Event) error {
	update, ok := event.Payload.(realtime.RiderUpdate)
	if !ok {
		return fmt.Errorf("%s: %w", event.Key(), errUnexpectedPayload)
	}

	b.store.AddRiderNotification(update.OrderId.String(), riderEvents[realtime.ServerEvent(event.Name)])

	return nil
}

func (b *Bridge) restaurantUpdate(event realtime.Event) error {
	update, ok := event.Payload.(realtime.RestaurantUpdate)
	if !ok {
		return fmt.Errorf("%s: %w", event.Key(), errUnexpectedPayload)
	}

	b.store.AddRestaurantNotification(update.OrderId.String(), restaurantEvents[realtime.ServerEvent(event.Name)])

	return nil
}

func (b *Bridge) pushNotification(event realtime.Event) error {
	push, ok := event.Payload.(realtime.PushNotification)
	if !ok {
		return fmt.Errorf("%s: %w", event.Key(), errUnexpectedPayload)
	}

	draft := notification.Draft{
		Title:   push.Title,
		Message: push.Message,
		Kind:    notification.Kind(push.Kind),
	}

	if push.DurationMs != nil {
		draft.Duration = notification.Duration(time.Duration(*push.DurationMs) * time.Millisecond)
	}

	if push.ActionLabel != "" && push.ActionURL != "" {
		draft.Action = &notification.Action{Label: push.ActionLabel, Target: push.ActionURL}
	}

	b.store.Add(draft)

	return nil
}

func (b *Bridge) disconnect(event realtime.Event) error {
	lifecycle, _ := event.Payload.(realtime.Lifecycle)
	if lifecycle.Reason == realtime.ReasonClientDisconnect {
		return nil
	}

	b.logger.Debug("raising connection lost notification",
		zap.Stringer("namespace", event.Namespace),
		zap.String("reason", lifecycle.Reason))

	b.store.Add(notification.Draft{
		Kind:    notification.KindWarning,
		Title:   "Connection Lost",
		Message: fmt.Sprintf("Lost connection to %s updates. Reconnecting...", event.Namespace),
	})

	return nil
}
