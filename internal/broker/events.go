package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher is the event-publishing surface the services depend on.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishPaymentPending(ctx context.Context, event *models.PaymentPendingEvent) error
	PublishPaymentPaid(ctx context.Context, event *models.PaymentPaidEvent) error
	PublishOrdersExpired(ctx context.Context, event *models.OrdersExpiredEvent) error
}

// NewBaseEvent fills the common event envelope.
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// EventPublisher publishes domain events to the events topic.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishUserRegistered publishes a UserRegistered event
func (ep *EventPublisher) PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("user-%d", event.UserID), event)
}

// PublishOrderCreated publishes an OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishPaymentPending publishes a PaymentPending event
func (ep *EventPublisher) PublishPaymentPending(ctx context.Context, event *models.PaymentPendingEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishPaymentPaid publishes a PaymentPaid event
func (ep *EventPublisher) PublishPaymentPaid(ctx context.Context, event *models.PaymentPaidEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("payment-%d", event.PaymentID), event)
}

// PublishOrdersExpired publishes an OrdersExpired event
func (ep *EventPublisher) PublishOrdersExpired(ctx context.Context, event *models.OrdersExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, "sweep", event)
}

// NopPublisher drops events; used when Kafka is not configured and by the
// one-shot sweeper binary.
type NopPublisher struct {
	logger *zap.Logger
}

// NewNopPublisher creates a publisher that only logs.
func NewNopPublisher(logger *zap.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

func (np *NopPublisher) PublishUserRegistered(_ context.Context, event *models.UserRegisteredEvent) error {
	np.logger.Debug("event dropped", zap.String("type", event.EventType))
	return nil
}

func (np *NopPublisher) PublishOrderCreated(_ context.Context, event *models.OrderCreatedEvent) error {
	np.logger.Debug("event dropped", zap.String("type", event.EventType))
	return nil
}

func (np *NopPublisher) PublishPaymentPending(_ context.Context, event *models.PaymentPendingEvent) error {
	np.logger.Debug("event dropped", zap.String("type", event.EventType))
	return nil
}

func (np *NopPublisher) PublishPaymentPaid(_ context.Context, event *models.PaymentPaidEvent) error {
	np.logger.Debug("event dropped", zap.String("type", event.EventType))
	return nil
}

func (np *NopPublisher) PublishOrdersExpired(_ context.Context, event *models.OrdersExpiredEvent) error {
	np.logger.Debug("event dropped", zap.String("type", event.EventType))
	return nil
}
