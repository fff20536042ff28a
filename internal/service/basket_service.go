package service

import (
	"context"
	"errors"

	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"

	"go.uber.org/zap"
)

// BasketStorage is the persistence surface the basket service needs.
type BasketStorage interface {
	BasketsByUser(ctx context.Context, userID int64) ([]models.Basket, error)
	UpsertBasket(ctx context.Context, basket *models.Basket) error
	DeleteBasketLine(ctx context.Context, userID, basketID int64) error
	ProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// BasketService manages per-user basket lines.
type BasketService struct {
	storage BasketStorage
	logger  *zap.Logger
}

// NewBasketService creates a new basket service
func NewBasketService(storage BasketStorage) *BasketService {
	return &BasketService{
		storage: storage,
		logger:  util.GetLogger(),
	}
}

// ListBaskets returns the caller's basket lines.
func (s *BasketService) ListBaskets(ctx context.Context, userID int64) ([]models.Basket, error) {
	return s.storage.BasketsByUser(ctx, userID)
}

// UpsertBasketRequest sets a product's quantity in the basket.
type UpsertBasketRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// UpsertBasket inserts a basket line or replaces the quantity of an
// existing line for the same product.
func (s *BasketService) UpsertBasket(ctx context.Context, userID int64, req *UpsertBasketRequest) (*models.Basket, error) {
	if req.Quantity < 1 {
		return nil, newValidationError("quantity must be at least 1")
	}

	if _, err := s.storage.ProductByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newValidationError("product does not exist")
		}
		return nil, err
	}

	basket := &models.Basket{
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}
	if err := s.storage.UpsertBasket(ctx, basket); err != nil {
		return nil, err
	}
	return basket, nil
}

// DeleteBasket removes one of the caller's basket lines.
func (s *BasketService) DeleteBasket(ctx context.Context, userID, basketID int64) error {
	err := s.storage.DeleteBasketLine(ctx, userID, basketID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
