package realtime

type ClientAction string

const (
	ActionJoinChat             ClientAction = "join_chat"
	ActionLeaveChat            ClientAction = "leave_chat"
	ActionSendMessage          ClientAction = "send_message"
	ActionTypingStart          ClientAction = "typing_start"
	ActionTypingStop           ClientAction = "typing_stop"
	ActionMarkMessagesRead     ClientAction = "mark_messages_read"
	ActionSubscribeRider       ClientAction = "subscribe_rider"
	ActionUnsubscribeRider     ClientAction = "unsubscribe_rider"
	ActionUpdateLocation       ClientAction = "update_location"
	ActionJoinOrder            ClientAction = "join_order"
	ActionLeaveOrder           ClientAction = "leave_order"
	ActionBroadcastOrderUpdate ClientAction = "order_update"
)

type OrderRoom struct {
	OrderId string `json:"orderId"`
}

type SendMessage struct {
	OrderId string `json:"orderId"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type MarkMessagesRead struct {
	OrderId    string   `json:"orderId"`
	MessageIds []string `json:"messageIds"`
}

type RiderSubscription struct {
	RiderId string `json:"riderId"`
}

type LocationPush struct {
	OrderId   string  `json:"orderId,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

type OrderBroadcast struct {
	OrderId string `json:"orderId"`
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
}

const MessageTypeText = "text"

func (r *Registry) JoinChatRoom(orderId string) {
	r.EmitClient(NamespaceChat, ActionJoinChat, OrderRoom{OrderId: orderId})
}

func (r *Registry) LeaveChatRoom(orderId string) {
	r.EmitClient(NamespaceChat, ActionLeaveChat, OrderRoom{OrderId: orderId})
}

// SendChatMessage sends a chat message; an empty messageType means text.
func (r *Registry) SendChatMessage(orderId string, message string, messageType string) {
	if messageType == "" {
		messageType = MessageTypeText
	}

	r.EmitClient(NamespaceChat, ActionSendMessage, SendMessage{
		OrderId: orderId,
		Message: message,
		Type:    messageType,
	})
}

func (r *Registry) StartTyping(orderId string) {
	r.EmitClient(NamespaceChat, ActionTypingStart, OrderRoom{OrderId: orderId})
}

func (r *Registry) StopTyping(orderId string) {
	r.EmitClient(NamespaceChat, ActionTypingStop, OrderRoom{OrderId: orderId})
}

func (r *Registry) MarkMessagesRead(orderId string, messageIds []string) {
	r.EmitClient(NamespaceChat, ActionMarkMessagesRead, MarkMessagesRead{
		OrderId:    orderId,
		MessageIds: messageIds,
	})
}

func (r *Registry) SubscribeToRider(riderId string) {
	r.EmitClient(NamespaceRiderTracking, ActionSubscribeRider, RiderSubscription{RiderId: riderId})
}

func (r *Registry) UnsubscribeFromRider(riderId string) {
	r.EmitClient(NamespaceRiderTracking, ActionUnsubscribeRider, RiderSubscription{RiderId: riderId})
}

func (r *Registry) UpdateRiderLocation(location LocationPush) {
	r.EmitClient(NamespaceRiderTracking, ActionUpdateLocation, location)
}

func (r *Registry) JoinOrderRoom(orderId string) {
	r.EmitClient(NamespaceOrders, ActionJoinOrder, OrderRoom{OrderId: orderId})
}

func (r *Registry) LeaveOrderRoom(orderId string) {
	r.EmitClient(NamespaceOrders, ActionLeaveOrder, OrderRoom{OrderId: orderId})
}

func (r *Registry) BroadcastOrderUpdate(orderId string, status string, data any) {
	r.EmitClient(NamespaceOrders, ActionBroadcastOrderUpdate, OrderBroadcast{
		OrderId: orderId,
		Status:  status,
		Data:    data,
	})
}
