package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered customer account. Balance is only ever mutated
// through deposit and charge inside the owning transaction.
type User struct {
	ID           int64           `db:"id" json:"id"`
	Email        string          `db:"email" json:"email"`
	PasswordHash string          `db:"password_hash" json:"-"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	IsStaff      bool            `db:"is_staff" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// EmailVerification holds a one-time account activation code.
type EmailVerification struct {
	ID        int64     `db:"id" json:"-"`
	UserID    int64     `db:"user_id" json:"-"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// IsExpired reports whether the code can no longer be used.
func (v *EmailVerification) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// Category is a catalog node; ParentID is nil for root categories.
type Category struct {
	ID       int64      `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	ParentID *int64     `db:"parent_id" json:"parent_id,omitempty"`
	Children []Category `db:"-" json:"children,omitempty"`
}

// Product is a catalog item. ProductCount is the available stock and is
// nullable in the schema; nil means stock is not tracked for the row.
type Product struct {
	ID           int64           `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Price        decimal.Decimal `db:"price" json:"price"`
	CategoryID   int64           `db:"category_id" json:"category_id"`
	Description  string          `db:"description" json:"description"`
	SoldCount    int             `db:"sold_count" json:"sold_count"`
	ProductCount *int            `db:"product_count" json:"product_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Favorite marks a product saved by a user; (user, product) is unique.
type Favorite struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
}

// Basket is a pending (user, product) line awaiting checkout.
type Basket struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
}

// Comment is a product review with an optional 1-5 rating.
type Comment struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Comment   string    `db:"comment" json:"comment"`
	Rating    *int      `db:"rating" json:"rating,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order is an immutable checkout snapshot. TotalPrice never changes once
// set; status only moves pending -> paid or pending -> cancelled.
type Order struct {
	ID         int64           `db:"id" json:"id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	Status     string          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time       `db:"expires_at" json:"expires_at"`
	Items      []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem is a line snapshot; Price is the unit price at purchase time
// and stays fixed when the product price later changes.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// Payment is a single payment attempt against an order or a balance
// top-up. Card fields are stored only for the card path.
type Payment struct {
	ID               int64           `db:"id" json:"id"`
	UserID           int64           `db:"user_id" json:"user_id"`
	OrderID          *int64          `db:"order_id" json:"order_id,omitempty"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	CardNumber       string          `db:"card_number" json:"-"`
	CardExpiry       string          `db:"card_expiry" json:"-"`
	CardCVV          string          `db:"card_cvv" json:"-"`
	Status           string          `db:"status" json:"status"`
	TransactionID    string          `db:"transaction_id" json:"transaction_id,omitempty"`
	ConfirmationCode string          `db:"confirmation_code" json:"confirmation_code,omitempty"`
	IsConfirmed      bool            `db:"is_confirmed" json:"is_confirmed"`
	PaymentType      string          `db:"payment_type" json:"payment_type"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt        time.Time       `db:"expires_at" json:"expires_at"`
}

// RequiresConfirmation reports whether the caller still has to submit a
// confirmation code for this payment.
func (p *Payment) RequiresConfirmation() bool {
	return !p.IsConfirmed
}

// Faq is a static question/answer pair.
type Faq struct {
	ID     int64  `db:"id" json:"id"`
	Ask    string `db:"ask" json:"ask"`
	Answer string `db:"answer" json:"answer"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// Payment types
const (
	PaymentTypeOrder   = "order_payment"
	PaymentTypeDeposit = "balance_replenishment"
)
