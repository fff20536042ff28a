package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("already exists")
	// ErrInsufficientFunds is returned when a conditional balance charge
	// matches no row.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Tx is a transactional session. Every method runs inside the transaction
// opened by RunInTx; the *ForUpdate reads take row locks so that
// check-then-mutate sequences on stock and balance are race-free.
type Tx interface {
	BasketsForUser(ctx context.Context, userID int64, ids []int64) ([]models.Basket, error)
	ProductForUpdate(ctx context.Context, id int64) (*models.Product, error)
	AdjustProductCounts(ctx context.Context, productID int64, stockDelta, soldDelta int) error
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItems(ctx context.Context, items []models.OrderItem) error
	DeleteBaskets(ctx context.Context, userID int64, ids []int64) error

	LatestPendingOrder(ctx context.Context, userID int64) (*models.Order, error)
	OrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error

	UserForUpdate(ctx context.Context, id int64) (*models.User, error)
	ChargeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	DepositBalance(ctx context.Context, userID int64, amount decimal.Decimal) error

	InsertPayment(ctx context.Context, payment *models.Payment) error
	PaymentForUpdate(ctx context.Context, id, userID int64) (*models.Payment, error)
	MarkPaymentPaid(ctx context.Context, paymentID int64, transactionID string) error
	CancelPendingPayments(ctx context.Context, orderID int64) (int64, error)

	VerificationByCode(ctx context.Context, code string) (*models.EmailVerification, error)
	ActivateUser(ctx context.Context, userID int64) error
	DeleteVerification(ctx context.Context, id int64) error
}

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTx executes fn inside a single database transaction. The
// transaction commits only if fn returns nil; any error rolls back every
// mutation fn performed.
func (s *Store) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	txx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqlTx{tx: txx}); err != nil {
		_ = txx.Rollback()
		return err
	}
	return txx.Commit()
}

// sqlTx implements Tx over a live sqlx transaction.
type sqlTx struct {
	tx *sqlx.Tx
}

// ProductFilter is the closed set of catalog list predicates. Arbitrary
// key-to-operator filtering is intentionally not supported.
type ProductFilter struct {
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
}

// Products lists catalog products matching the filter, newest first.
func (s *Store) Products(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := "SELECT * FROM products"
	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryID != nil {
		conditions = append(conditions, "category_id = "+arg(*filter.CategoryID))
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "price <= "+arg(*filter.MaxPrice))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conditions = append(conditions, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var products []models.Product
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ProductByID retrieves a product by ID
func (s *Store) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductForUpdate loads a product row under FOR UPDATE so the caller can
// check stock and decrement it without racing a concurrent checkout.
func (t *sqlTx) ProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// AdjustProductCounts applies relative stock and sold-count deltas.
func (t *sqlTx) AdjustProductCounts(ctx context.Context, productID int64, stockDelta, soldDelta int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET product_count = product_count + $1, sold_count = sold_count + $2, updated_at = NOW() WHERE id = $3",
		stockDelta, soldDelta, productID)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
