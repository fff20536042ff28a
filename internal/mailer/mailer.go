// Package mailer is the boundary to the external email system. Delivery
// mechanics live outside this service: the Kafka implementation hands a
// message to the mail topic and forgets about it.
package mailer

import (
	"context"
	"fmt"

	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/models"

	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer dispatches messages fire-and-forget.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage builds the account activation email.
func VerificationMessage(to, code string) Message {
	return Message{
		To:      to,
		Subject: "Confirm your account",
		Body:    fmt.Sprintf("Your verification code is %s. It expires in 24 hours.", code),
	}
}

// KafkaMailer publishes mail requests to the mail topic; a downstream
// notification consumer performs the actual delivery.
type KafkaMailer struct {
	producer *broker.Producer
	from     string
}

// NewKafkaMailer creates a Kafka-backed mailer.
func NewKafkaMailer(producer *broker.Producer, from string) *KafkaMailer {
	return &KafkaMailer{producer: producer, from: from}
}

// Send publishes the message as a MailRequested event.
func (m *KafkaMailer) Send(ctx context.Context, msg Message) error {
	event := &models.MailRequestedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeMailRequested),
		From:      m.from,
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
	}
	return m.producer.PublishEvent(ctx, msg.To, event)
}

// LogMailer writes messages to the log; used in development and by the
// notification worker as the final delivery stand-in.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a logging mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message instead of delivering it.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail dispatched",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
