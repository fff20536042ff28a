package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeUserRegistered = "USER_REGISTERED"
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypePaymentPending = "PAYMENT_PENDING"
	EventTypePaymentPaid    = "PAYMENT_PAID"
	EventTypeOrdersExpired  = "ORDERS_EXPIRED"
	EventTypeMailRequested  = "MAIL_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// UserRegisteredEvent published after a new account is created
type UserRegisteredEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// OrderCreatedEvent published when a basket selection becomes an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []OrderItemData `json:"items"`
}

// PaymentPendingEvent published when a card payment awaits confirmation
type PaymentPendingEvent struct {
	BaseEvent
	PaymentID int64           `json:"payment_id"`
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentPaidEvent published when a payment reaches the paid state
type PaymentPaidEvent struct {
	BaseEvent
	PaymentID     int64           `json:"payment_id"`
	OrderID       int64           `json:"order_id,omitempty"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	PaymentType   string          `json:"payment_type"`
}

// OrdersExpiredEvent published after a sweep cancels expired orders
type OrdersExpiredEvent struct {
	BaseEvent
	CancelledCount int     `json:"cancelled_count"`
	OrderIDs       []int64 `json:"order_ids"`
}

// MailRequestedEvent carries an outbound message for the notification
// consumer; actual delivery happens outside this service.
type MailRequestedEvent struct {
	BaseEvent
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
