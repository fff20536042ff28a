package store

import (
	"context"

	"github.com/HadichaRaxmat/online-market-api/internal/models"

	"github.com/jmoiron/sqlx"
)

// BasketsByUser lists a user's basket lines.
func (s *Store) BasketsByUser(ctx context.Context, userID int64) ([]models.Basket, error) {
	var baskets []models.Basket
	err := s.db.SelectContext(ctx, &baskets,
		"SELECT * FROM baskets WHERE user_id = $1 ORDER BY added_at DESC", userID)
	return baskets, err
}

// UpsertBasket inserts or replaces the (user, product) line; an existing
// line gets its quantity overwritten, matching basket update semantics.
func (s *Store) UpsertBasket(ctx context.Context, basket *models.Basket) error {
	query := `
		INSERT INTO baskets (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id, added_at`

	return s.db.GetContext(ctx, basket, query,
		basket.UserID, basket.ProductID, basket.Quantity)
}

// DeleteBasketLine removes one owned basket line.
func (s *Store) DeleteBasketLine(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM baskets WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// BasketsForUser resolves basket line IDs scoped to their owner. Lines
// belonging to other users are simply absent from the result; the caller
// compares lengths to reject foreign or missing IDs.
func (t *sqlTx) BasketsForUser(ctx context.Context, userID int64, ids []int64) ([]models.Basket, error) {
	if len(ids) == 0 {
		return []models.Basket{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT * FROM baskets WHERE user_id = ? AND id IN (?) ORDER BY id", userID, ids)
	if err != nil {
		return nil, err
	}
	query = t.tx.Rebind(query)

	var baskets []models.Basket
	err = t.tx.SelectContext(ctx, &baskets, query, args...)
	return baskets, err
}

// DeleteBaskets removes consumed basket lines after checkout.
func (t *sqlTx) DeleteBaskets(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM baskets WHERE user_id = ? AND id IN (?)", userID, ids)
	if err != nil {
		return err
	}
	query = t.tx.Rebind(query)

	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}
