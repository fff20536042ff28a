package service

import (
	"context"
	"errors"

	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"

	"go.uber.org/zap"
)

// CatalogStorage is the persistence surface the catalog service needs.
type CatalogStorage interface {
	Categories(ctx context.Context) ([]models.Category, error)
	Products(ctx context.Context, filter store.ProductFilter) ([]models.Product, error)
	ProductByID(ctx context.Context, id int64) (*models.Product, error)
	CommentsByProduct(ctx context.Context, productID int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	FavoritesByUser(ctx context.Context, userID int64) ([]models.Favorite, error)
	CreateFavorite(ctx context.Context, favorite *models.Favorite) error
	DeleteFavoriteByProduct(ctx context.Context, userID, productID int64) error
	Faqs(ctx context.Context) ([]models.Faq, error)
}

// CatalogService serves the read-mostly catalog surface.
type CatalogService struct {
	storage CatalogStorage
	logger  *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(storage CatalogStorage) *CatalogService {
	return &CatalogService{
		storage: storage,
		logger:  util.GetLogger(),
	}
}

// CategoryTree returns root categories with children nested.
func (s *CatalogService) CategoryTree(ctx context.Context) ([]models.Category, error) {
	flat, err := s.storage.Categories(ctx)
	if err != nil {
		return nil, err
	}

	byParent := make(map[int64][]models.Category)
	var roots []models.Category
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
		}
	}

	var attach func(parent *models.Category)
	attach = func(parent *models.Category) {
		parent.Children = byParent[parent.ID]
		for i := range parent.Children {
			attach(&parent.Children[i])
		}
	}
	for i := range roots {
		attach(&roots[i])
	}
	return roots, nil
}

// ListProducts returns products matching the typed filter.
func (s *CatalogService) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	return s.storage.Products(ctx, filter)
}

// GetProduct returns one product by ID.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.storage.ProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return product, err
}

// ListComments returns a product's comments.
func (s *CatalogService) ListComments(ctx context.Context, productID int64) ([]models.Comment, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.storage.CommentsByProduct(ctx, productID)
}

// CreateCommentRequest carries a new product comment.
type CreateCommentRequest struct {
	Comment string `json:"comment" binding:"required"`
	Rating  *int   `json:"rating" binding:"omitempty,min=1,max=5"`
}

// AddComment attaches a comment to a product.
func (s *CatalogService) AddComment(ctx context.Context, userID, productID int64, req *CreateCommentRequest) (*models.Comment, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		UserID:    userID,
		ProductID: productID,
		Comment:   req.Comment,
		Rating:    req.Rating,
	}
	if err := s.storage.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListFavorites returns the caller's favorites.
func (s *CatalogService) ListFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	return s.storage.FavoritesByUser(ctx, userID)
}

// AddFavorite saves a product to the caller's favorites.
func (s *CatalogService) AddFavorite(ctx context.Context, userID, productID int64) (*models.Favorite, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	favorite := &models.Favorite{UserID: userID, ProductID: productID}
	if err := s.storage.CreateFavorite(ctx, favorite); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newValidationError("product already in favorites")
		}
		return nil, err
	}
	return favorite, nil
}

// RemoveFavorite removes a product from the caller's favorites.
func (s *CatalogService) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	err := s.storage.DeleteFavoriteByProduct(ctx, userID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// ListFaqs returns every FAQ entry.
func (s *CatalogService) ListFaqs(ctx context.Context) ([]models.Faq, error) {
	return s.storage.Faqs(ctx)
}
