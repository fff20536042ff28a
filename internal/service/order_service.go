package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderStorage is the persistence surface the order service needs.
type OrderStorage interface {
	RunInTx(ctx context.Context, fn func(tx store.Tx) error) error
	OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	OrderByID(ctx context.Context, userID, orderID int64) (*models.Order, error)
	OrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error)
}

// OrderService converts basket selections into immutable orders.
type OrderService struct {
	storage     OrderStorage
	publisher   broker.Publisher
	orderExpiry time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(storage OrderStorage, publisher broker.Publisher, orderExpiry time.Duration) *OrderService {
	return &OrderService{
		storage:     storage,
		publisher:   publisher,
		orderExpiry: orderExpiry,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// CreateOrderRequest selects basket lines for checkout.
type CreateOrderRequest struct {
	BasketIDs []int64 `json:"basket_ids" binding:"required,min=1"`
}

// CreateOrder checks out the selected basket lines. Everything runs in a
// single transaction: the order and its item snapshots are created, each
// product's stock is decremented under a row lock, and the consumed
// basket lines are deleted. Any failure rolls the whole checkout back.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if len(req.BasketIDs) == 0 {
		util.OrdersFailedTotal.WithLabelValues("invalid_baskets").Inc()
		return nil, newValidationError("basket_ids must not be empty")
	}

	var order models.Order
	err := s.storage.RunInTx(ctx, func(tx store.Tx) error {
		baskets, err := tx.BasketsForUser(ctx, userID, req.BasketIDs)
		if err != nil {
			return fmt.Errorf("failed to load baskets: %w", err)
		}
		if len(baskets) != len(req.BasketIDs) {
			return newValidationError("some basket lines were not found or do not belong to you")
		}

		// Lock products in a fixed order so two concurrent checkouts
		// over the same products cannot deadlock.
		sort.Slice(baskets, func(i, j int) bool {
			return baskets[i].ProductID < baskets[j].ProductID
		})

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(baskets))
		for _, basket := range baskets {
			product, err := tx.ProductForUpdate(ctx, basket.ProductID)
			if err != nil {
				return fmt.Errorf("failed to lock product %d: %w", basket.ProductID, err)
			}

			if product.ProductCount != nil && *product.ProductCount < basket.Quantity {
				return newValidationError(fmt.Sprintf("insufficient stock for product %q", product.Name))
			}

			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(basket.Quantity))))
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Quantity:  basket.Quantity,
				Price:     product.Price,
			})

			if err := tx.AdjustProductCounts(ctx, product.ID, -basket.Quantity, basket.Quantity); err != nil {
				return fmt.Errorf("failed to adjust stock for product %d: %w", product.ID, err)
			}
		}

		order = models.Order{
			UserID:     userID,
			TotalPrice: total,
			Status:     models.OrderStatusPending,
			ExpiresAt:  s.now().Add(s.orderExpiry),
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.InsertOrderItems(ctx, items); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}
		order.Items = items

		return tx.DeleteBaskets(ctx, userID, req.BasketIDs)
	})
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total_price", order.TotalPrice.String()))

	eventItems := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:    order.ID,
		UserID:     userID,
		TotalPrice: order.TotalPrice,
		Items:      eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &order, nil
}

// ListOrders returns the caller's orders with their items.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.storage.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
	}

	items, err := s.storage.OrderItemsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

// GetOrder returns one owned order with its items.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.storage.OrderByID(ctx, userID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.storage.OrderItemsByOrderIDs(ctx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}
