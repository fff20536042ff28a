package store

import (
	"context"

	"github.com/HadichaRaxmat/online-market-api/internal/models"
)

// Categories lists every category, roots first.
func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories,
		"SELECT id, name, parent_id FROM categories ORDER BY parent_id NULLS FIRST, id")
	return categories, err
}

// CommentsByProduct lists comments for a product, newest first.
func (s *Store) CommentsByProduct(ctx context.Context, productID int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.SelectContext(ctx, &comments,
		"SELECT * FROM comments WHERE product_id = $1 ORDER BY created_at DESC", productID)
	return comments, err
}

// CreateComment inserts a product comment.
func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (user_id, product_id, comment, rating)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, comment, query,
		comment.UserID, comment.ProductID, comment.Comment, comment.Rating)
}

// FavoritesByUser lists a user's favorites.
func (s *Store) FavoritesByUser(ctx context.Context, userID int64) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := s.db.SelectContext(ctx, &favorites,
		"SELECT * FROM favorites WHERE user_id = $1 ORDER BY added_at DESC", userID)
	return favorites, err
}

// CreateFavorite marks a product as favorite; duplicate pairs are rejected.
func (s *Store) CreateFavorite(ctx context.Context, favorite *models.Favorite) error {
	query := `
		INSERT INTO favorites (user_id, product_id)
		VALUES ($1, $2)
		RETURNING id, added_at`

	err := s.db.GetContext(ctx, favorite, query, favorite.UserID, favorite.ProductID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteFavoriteByProduct removes a favorite by product ID.
func (s *Store) DeleteFavoriteByProduct(ctx context.Context, userID, productID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = $1 AND product_id = $2", userID, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// Faqs lists every FAQ entry.
func (s *Store) Faqs(ctx context.Context) ([]models.Faq, error) {
	var faqs []models.Faq
	err := s.db.SelectContext(ctx, &faqs, "SELECT * FROM faqs ORDER BY id")
	return faqs, err
}
