package models

import "time"

// Notification event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
)

// BaseEvent contains common fields for all notification events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderNotification carries everything the notification worker needs to send
// the email and the realtime push for one order event. The fields are
// denormalized at enqueue time so the worker never re-reads order state.
type OrderNotification struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	BuyerUserID  string `json:"buyer_user_id"`
	BuyerEmail   string `json:"buyer_email"`
	ListingID    string `json:"listing_id"`
	ListingTitle string `json:"listing_title"`
	Status       string `json:"status"`
	PaymentID    string `json:"payment_id,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
}
