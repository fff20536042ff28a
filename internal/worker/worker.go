package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/mailer"
	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/service"

	"github.com/segmentio/kafka-go"
)

// NotificationWorker consumes mail requests and hands them to a mailer
type NotificationWorker struct {
	consumer *broker.Consumer
	mailer   mailer.Mailer
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, m mailer.Mailer) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		mailer:   m,
	}
}

// Start starts the notification worker
func (nw *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")

	return nw.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			log.Printf("Failed to unmarshal event: %v", err)
			return err
		}

		if baseEvent.EventType != models.EventTypeMailRequested {
			return nil
		}

		var event models.MailRequestedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("Failed to unmarshal MailRequested event: %v", err)
			return err
		}

		return nw.mailer.Send(ctx, mailer.Message{
			To:      event.To,
			Subject: event.Subject,
			Body:    event.Body,
		})
	})
}

// Stop stops the notification worker
func (nw *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return nw.consumer.Close()
}

// SweepWorker periodically cancels expired pending orders
type SweepWorker struct {
	sweeper  *service.Sweeper
	interval time.Duration
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(sweeper *service.Sweeper, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start runs sweep passes until the context is cancelled
func (sw *SweepWorker) Start(ctx context.Context) {
	log.Printf("Starting sweep worker with interval %s...", sw.interval)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping sweep worker...")
			return
		case <-ticker.C:
			if _, err := sw.sweeper.SweepExpired(ctx); err != nil {
				log.Printf("Sweep pass failed: %v", err)
			}
		}
	}
}
