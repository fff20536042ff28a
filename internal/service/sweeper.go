package service

import (
	"context"
	"fmt"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"

	"go.uber.org/zap"
)

// SweeperStorage is the persistence surface the expiry sweep needs.
type SweeperStorage interface {
	RunInTx(ctx context.Context, fn func(tx store.Tx) error) error
	ExpiredPendingOrderIDs(ctx context.Context, now time.Time) ([]int64, error)
}

// Sweeper cancels pending orders past their deadline, restores their
// stock, and cancels their pending payments.
type Sweeper struct {
	storage   SweeperStorage
	publisher broker.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(storage SweeperStorage, publisher broker.Publisher) *Sweeper {
	return &Sweeper{
		storage:   storage,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// SweepExpired cancels every expired pending order. Each order is swept
// in its own transaction: a failing order is logged and skipped, and the
// pass reports how many orders it cancelled. Re-running is safe because
// only pending orders are touched and cancellation is one-way.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "Sweeper.SweepExpired")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SweepLatency.Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	ids, err := s.storage.ExpiredPendingOrderIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to select expired orders: %w", err)
	}

	cancelled := make([]int64, 0, len(ids))
	for _, orderID := range ids {
		swept, err := s.sweepOrder(ctx, orderID, now)
		if err != nil {
			s.logger.Error("Failed to sweep order",
				zap.Int64("order_id", orderID), zap.Error(err))
			continue
		}
		if swept {
			cancelled = append(cancelled, orderID)
		}
	}

	if len(cancelled) > 0 {
		util.OrdersExpiredTotal.Add(float64(len(cancelled)))
		s.logger.Info("Expiry sweep completed",
			zap.Int("cancelled", len(cancelled)),
			zap.Int("selected", len(ids)))

		event := &models.OrdersExpiredEvent{
			BaseEvent:      broker.NewBaseEvent(models.EventTypeOrdersExpired),
			CancelledCount: len(cancelled),
			OrderIDs:       cancelled,
		}
		if err := s.publisher.PublishOrdersExpired(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrdersExpired event", zap.Error(err))
		}
	}

	return len(cancelled), nil
}

// sweepOrder cancels one order. The status is re-checked under the row
// lock so an order settled between selection and sweep is left alone.
func (s *Sweeper) sweepOrder(ctx context.Context, orderID int64, now time.Time) (bool, error) {
	swept := false
	err := s.storage.RunInTx(ctx, func(tx store.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		if order.Status != models.OrderStatusPending || order.ExpiresAt.After(now) {
			return nil
		}
		swept = true

		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}

		for _, item := range items {
			if err := tx.AdjustProductCounts(ctx, item.ProductID, item.Quantity, -item.Quantity); err != nil {
				return fmt.Errorf("failed to restore stock for product %d: %w", item.ProductID, err)
			}
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, models.OrderStatusCancelled); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}

		if _, err := tx.CancelPendingPayments(ctx, orderID); err != nil {
			return fmt.Errorf("failed to cancel payments: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return swept, nil
}
