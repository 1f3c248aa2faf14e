package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type ServerEvent string

// Synthetic lifecycle events raised by the registry itself.
const (
	EventConnect    ServerEvent = "connect"
	EventDisconnect ServerEvent = "disconnect"
	EventError      ServerEvent = "error"
)

const (
	EventOrderUpdate        ServerEvent = "order_update"
	EventOrderStatusChanged ServerEvent = "order_status_changed"
	EventLocationUpdate     ServerEvent = "location_update"
	EventNewMessage         ServerEvent = "new_message"
	EventMessagesRead       ServerEvent = "messages_read"
	EventUserTyping         ServerEvent = "user_typing"
	EventUserStoppedTyping  ServerEvent = "user_stopped_typing"
	EventRiderAssigned      ServerEvent = "rider_assigned"
	EventOrderPickedUp      ServerEvent = "order_picked_up"
	EventOrderDelivered     ServerEvent = "order_delivered"
	EventNewOrder           ServerEvent = "new_order"
	EventOrderReady         ServerEvent = "order_ready"
	EventOrderCancelled     ServerEvent = "order_cancelled"
	EventPaymentUpdate      ServerEvent = "payment_update"
	EventNotification       ServerEvent = "notification"
)

// Disconnect reasons reported in Lifecycle.Reason.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
)

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = ID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}

	*id = ID(n.String())

	return nil
}

func (id ID) String() string {
	return string(id)
}

type Lifecycle struct {
	SocketId string `json:"socketId,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

type OrderUpdate struct {
	OrderId        ID              `json:"orderId"`
	Status         string          `json:"status"`
	RestaurantName string          `json:"restaurantName,omitempty"`
	UpdateTime     time.Time       `json:"updatedAt,omitzero"`
	Data           json.RawMessage `json:"data,omitempty"`
}

type LocationUpdate struct {
	RiderId   ID        `json:"riderId"`
	OrderId   ID        `json:"orderId,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading,omitempty"`
	Speed     float64   `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

type ChatMessage struct {
	Id         ID        `json:"id"`
	OrderId    ID        `json:"orderId"`
	SenderId   ID        `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderRole string    `json:"senderRole,omitempty"`
	Message    string    `json:"message"`
	Type       string    `json:"type,omitempty"`
	CreateTime time.Time `json:"timestamp,omitzero"`
}

type MessagesRead struct {
	OrderId    ID   `json:"orderId"`
	ReaderId   ID   `json:"readerId"`
	MessageIds []ID `json:"messageIds"`
}

type Typing struct {
	OrderId  ID     `json:"orderId"`
	UserId   ID     `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

type RiderUpdate struct {
	OrderId   ID     `json:"orderId"`
	RiderId   ID     `json:"riderId,omitempty"`
	RiderName string `json:"riderName,omitempty"`
}

type RestaurantUpdate struct {
	OrderId      ID     `json:"orderId"`
	RestaurantId ID     `json:"restaurantId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type PaymentUpdate struct {
	PaymentId ID      `json:"paymentId"`
	OrderId   ID      `json:"orderId,omitempty"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
}

type PushNotification struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	Kind        string `json:"type"`
	DurationMs  *int64 `json:"duration,omitempty"`
	ActionLabel string `json:"actionLabel,omitempty"`
	ActionURL   string `json:"actionUrl,omitempty"`
}

// Event is an inbound message as delivered to listeners. Payload holds the
// typed value decoded for Name, or the raw JSON when the name is unknown or
// the payload did not match its expected shape.
type Event struct {
	Namespace Namespace       `json:"namespace"`
	Name      string          `json:"event"`
	Payload   any             `json:"payload"`
	Raw       json.RawMessage `json:"-"`
}

func (e Event) Key() string {
	return Key(e.Namespace, e.Name)
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	return v, nil
}

var decoders = map[ServerEvent]func(json.RawMessage) (any, error){
	EventOrderUpdate:        decodeAs[OrderUpdate],
	EventOrderStatusChanged: decodeAs[OrderUpdate],
	EventLocationUpdate:     decodeAs[LocationUpdate],
	EventNewMessage:         decodeAs[ChatMessage],
	EventMessagesRead:       decodeAs[MessagesRead],
	EventUserTyping:         decodeAs[Typing],
	EventUserStoppedTyping:  decodeAs[Typing],
	EventRiderAssigned:      decodeAs[RiderUpdate],
	EventOrderPickedUp:      decodeAs[RiderUpdate],
	EventOrderDelivered:     decodeAs[RiderUpdate],
	EventNewOrder:           decodeAs[RestaurantUpdate],
	EventOrderReady:         decodeAs[RestaurantUpdate],
	EventOrderCancelled:     decodeAs[RestaurantUpdate],
	EventPaymentUpdate:      decodeAs[PaymentUpdate],
	EventNotification:       decodeAs[PushNotification],
}

// Decode maps a wire event onto its typed payload. The returned event is
// always usable; the error only reports a payload that did not match.
func Decode(namespace Namespace, name string, raw json.RawMessage) (Event, error) {
	event := Event{
		Namespace: namespace,
		Name:      name,
		Payload:   raw,
		Raw:       raw,
	}

	decode, ok := decoders[ServerEvent(name)]
	if !ok || len(raw) == 0 {
		return event, nil
	}

	payload, err := decode(raw)
	if err != nil {
		return event, fmt.Errorf("decode %s payload: %w", name, err)
	}

	event.Payload = payload

	return event, nil
}
