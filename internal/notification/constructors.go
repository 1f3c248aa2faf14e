package notification

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusOnTheWay  OrderStatus = "on_the_way"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusPending PaymentStatus = "pending"
)

type RiderEvent string

const (
	RiderEventAssigned  RiderEvent = "assigned"
	RiderEventPickedUp  RiderEvent = "picked_up"
	RiderEventDelivered RiderEvent = "delivered"
)

type RestaurantEvent string

const (
	RestaurantEventNewOrder       RestaurantEvent = "new_order"
	RestaurantEventOrderReady     RestaurantEvent = "order_ready"
	RestaurantEventOrderCancelled RestaurantEvent = "order_cancelled"
)

const (
	ActionViewOrder    = "View Order"
	ActionReply        = "Reply"
	ActionViewDetails  = "View Details"
	ActionManageOrders = "Manage Orders"

	RestaurantOrdersRoute = "/restaurant/orders"

	chatPreviewLength = 50
)

func OrderTrackingRoute(orderId string) string {
	return "/orders/" + orderId + "/track"
}

func OrderChatRoute(orderId string) string {
	return "/orders/" + orderId + "/chat"
}

func OrderDetailsRoute(orderId string) string {
	return "/orders/" + orderId
}

func OrderDraft(orderId string, status OrderStatus, restaurantName string) Draft {
	restaurant := restaurantName
	if restaurant == "" {
		restaurant = "the restaurant"
	}

	draft := Draft{
		Action: &Action{Label: ActionViewOrder, Target: OrderTrackingRoute(orderId)},
	}

	switch status {
	case OrderStatusPlaced:
		draft.Kind = KindSuccess
		draft.Title = "Order Placed"
		draft.Message = fmt.Sprintf("Your order #%s from %s has been placed.", orderId, restaurant)
	case OrderStatusPreparing:
		draft.Kind = KindInfo
		draft.Title = "Order Being Prepared"
		draft.Message = fmt.Sprintf("%s is preparing your order #%s.", restaurant, orderId)
	case OrderStatusOnTheWay:
		draft.Kind = KindInfo
		draft.Title = "Order On The Way"
		draft.Message = fmt.Sprintf("Your order #%s from %s is on the way.", orderId, restaurant)
	case OrderStatusDelivered:
		draft.Kind = KindSuccess
		draft.Title = "Order Delivered"
		draft.Message = fmt.Sprintf("Your order #%s has been delivered. Enjoy your meal!", orderId)
	case OrderStatusCancelled:
		draft.Kind = KindWarning
		draft.Title = "Order Cancelled"
		draft.Message = fmt.Sprintf("Your order #%s from %s has been cancelled.", orderId, restaurant)
	default:
		draft.Kind = KindInfo
		draft.Title = "Order Update"
		draft.Message = fmt.Sprintf("Your order #%s is now %s.", orderId, status)
	}

	return draft
}

func PaymentDraft(paymentId string, status PaymentStatus, amount float64) Draft {
	formatted := strconv.FormatFloat(amount, 'f', -1, 64)

	switch status {
	case PaymentStatusSuccess:
		return Draft{
			Kind:    KindSuccess,
			Title:   "Payment Successful",
			Message: fmt.Sprintf("Payment #%s of %s was completed successfully.", paymentId, formatted),
		}
	case PaymentStatusFailed:
		return Draft{
			Kind:    KindError,
			Title:   "Payment Failed",
			Message: fmt.Sprintf("Payment #%s of %s failed. Please try again.", paymentId, formatted),
		}
	case PaymentStatusPending:
		return Draft{
			Kind:    KindWarning,
			Title:   "Payment Pending",
			Message: fmt.Sprintf("Payment #%s of %s is being processed.", paymentId, formatted),
		}
	default:
		return Draft{
			Kind:    KindInfo,
			Title:   "Payment Update",
			Message: fmt.Sprintf("Payment #%s of %s is %s.", paymentId, formatted, status),
		}
	}
}

func ChatDraft(orderId string, senderName string, message string) Draft {
	return Draft{
		Kind:    KindInfo,
		Title:   "New message from " + senderName,
		Message: truncate(message, chatPreviewLength),
		Action:  &Action{Label: ActionReply, Target: OrderChatRoute(orderId)},
	}
}

func RiderDraft(orderId string, event RiderEvent) Draft {
	draft := Draft{
		Action: &Action{Label: ActionViewDetails, Target: OrderDetailsRoute(orderId)},
	}

	switch event {
	case RiderEventAssigned:
		draft.Kind = KindInfo
		draft.Title = "Rider Assigned"
		draft.Message = fmt.Sprintf("A rider has been assigned to your order #%s.", orderId)
	case RiderEventPickedUp:
		draft.Kind = KindSuccess
		draft.Title = "Order Picked Up"
		draft.Message = fmt.Sprintf("Your order #%s has been picked up and is on its way.", orderId)
	case RiderEventDelivered:
		draft.Kind = KindSuccess
		draft.Title = "Order Delivered"
		draft.Message = fmt.Sprintf("The rider has delivered your order #%s.", orderId)
	default:
		draft.Kind = KindInfo
		draft.Title = "Rider Update"
		draft.Message = fmt.Sprintf("Rider update for order #%s: %s.", orderId, event)
	}

	return draft
}

func RestaurantDraft(orderId string, event RestaurantEvent) Draft {
	draft := Draft{
		Action: &Action{Label: ActionManageOrders, Target: RestaurantOrdersRoute},
	}

	switch event {
	case RestaurantEventNewOrder:
		draft.Kind = KindInfo
		draft.Title = "New Order"
		draft.Message = fmt.Sprintf("You have received a new order #%s.", orderId)
	case RestaurantEventOrderReady:
		draft.Kind = KindSuccess
		draft.Title = "Order Ready"
		draft.Message = fmt.Sprintf("Order #%s is ready for pickup.", orderId)
	case RestaurantEventOrderCancelled:
		draft.Kind = KindWarning
		draft.Title = "Order Cancelled"
		draft.Message = fmt.Sprintf("Order #%s has been cancelled by the customer.", orderId)
	default:
		draft.Kind = KindInfo
		draft.Title = "Order Update"
		draft.Message = fmt.Sprintf("Order #%s: %s.", orderId, event)
	}

	return draft
}

func (s *Store) AddOrderNotification(orderId string, status OrderStatus, restaurantName string) State {
	return s.Add(OrderDraft(orderId, status, restaurantName))
}

func (s *Store) AddPaymentNotification(paymentId string, status PaymentStatus, amount float64) State {
	return s.Add(PaymentDraft(paymentId, status, amount))
}

func (s *Store) AddChatNotification(orderId string, senderName string, message string) State {
	return s.Add(ChatDraft(orderId, senderName, message))
}

func (s *Store) AddRiderNotification(orderId string, event RiderEvent) State {
	return s.Add(RiderDraft(orderId, event))
}

func (s *Store) AddRestaurantNotification(orderId string, event RestaurantEvent) State {
	return s.Add(RestaurantDraft(orderId, event))
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)

	return string(runes[:limit]) + "..."
}
