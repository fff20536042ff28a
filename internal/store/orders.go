package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/models"

	"github.com/jmoiron/sqlx"
)

// OrdersByUser lists a user's orders, newest first.
func (s *Store) OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// OrderByID retrieves an owned order by ID.
func (s *Store) OrderByID(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND user_id = $2", orderID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderItemsByOrderIDs retrieves the items for a set of orders.
func (s *Store) OrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []models.OrderItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id", orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// PaymentsByUser lists a user's payments, newest first.
func (s *Store) PaymentsByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return payments, err
}

// ExpiredPendingOrderIDs selects orders due for cancellation: still
// pending and past their deadline at the given instant.
func (s *Store) ExpiredPendingOrderIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		"SELECT id FROM orders WHERE status = $1 AND expires_at < $2 ORDER BY id",
		models.OrderStatusPending, now)
	return ids, err
}

// InsertOrder creates the order row and fills in generated fields.
func (t *sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, total_price, status, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, order, query,
		order.UserID, order.TotalPrice, order.Status, order.ExpiresAt)
}

// InsertOrderItems bulk-inserts the line snapshots.
func (t *sqlTx) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES (:order_id, :product_id, :quantity, :price)`, items)
	return err
}

// LatestPendingOrder selects the most recently created pending order for
// the user, locked against a concurrent payment attempt.
func (t *sqlTx) LatestPendingOrder(ctx context.Context, userID int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order, `
		SELECT * FROM orders
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE`, userID, models.OrderStatusPending)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderForUpdate locks one order row; the sweeper re-checks status under
// this lock so an order is never cancelled twice.
func (t *sqlTx) OrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderItems retrieves all items for an order within the transaction.
func (t *sqlTx) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := t.tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus updates order status
func (t *sqlTx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", status, orderID)
	return err
}

// InsertPayment creates a payment row and fills in generated fields.
func (t *sqlTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (user_id, order_id, amount, card_number, card_expiry, card_cvv,
		                      status, transaction_id, confirmation_code, is_confirmed,
		                      payment_type, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, payment, query,
		payment.UserID, payment.OrderID, payment.Amount,
		payment.CardNumber, payment.CardExpiry, payment.CardCVV,
		payment.Status, payment.TransactionID, payment.ConfirmationCode,
		payment.IsConfirmed, payment.PaymentType, payment.ExpiresAt)
}

// PaymentForUpdate locks an owned payment row for confirmation.
func (t *sqlTx) PaymentForUpdate(ctx context.Context, id, userID int64) (*models.Payment, error) {
	var payment models.Payment
	err := t.tx.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE id = $1 AND user_id = $2 FOR UPDATE", id, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaymentPaid moves a payment to its terminal paid state.
func (t *sqlTx) MarkPaymentPaid(ctx context.Context, paymentID int64, transactionID string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE payments SET status = $1, is_confirmed = TRUE, transaction_id = $2 WHERE id = $3",
		models.PaymentStatusPaid, transactionID, paymentID)
	return err
}

// CancelPendingPayments bulk-cancels an order's pending payments.
func (t *sqlTx) CancelPendingPayments(ctx context.Context, orderID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE payments SET status = $1 WHERE order_id = $2 AND status = $3",
		models.PaymentStatusCancelled, orderID, models.PaymentStatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
