package models

import "time"

// OrderPlacedEvent is published after an order is acknowledged by the store.
type OrderPlacedEvent struct {
	Event          string    `json:"event"` // "order.placed"
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	UserID         string    `json:"user_id"`
	Total          int64     `json:"total"`
	Currency       string    `json:"currency"`
	PaymentKind    string    `json:"payment_kind"`
	DeliveryOption string    `json:"delivery_option"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConfirmationNotice is the best-effort notification payload sent after
// order success. A failed notice never rolls back the order.
type ConfirmationNotice struct {
	EventType   string    `json:"event_type"` // "order_confirmation"
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Total       int64     `json:"total"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}
