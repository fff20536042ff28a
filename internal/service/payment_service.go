package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentStorage is the persistence surface the payment service needs.
type PaymentStorage interface {
	RunInTx(ctx context.Context, fn func(tx store.Tx) error) error
	PaymentsByUser(ctx context.Context, userID int64) ([]models.Payment, error)
}

// PaymentService runs the balance-or-card payment flow and balance
// top-ups.
type PaymentService struct {
	storage       PaymentStorage
	publisher     broker.Publisher
	paymentExpiry time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(storage PaymentStorage, publisher broker.Publisher, paymentExpiry time.Duration) *PaymentService {
	return &PaymentService{
		storage:       storage,
		publisher:     publisher,
		paymentExpiry: paymentExpiry,
		logger:        util.GetLogger(),
		now:           time.Now,
	}
}

// CreatePaymentRequest carries optional card details for the card path.
type CreatePaymentRequest struct {
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_expiry"`
	CardCVV    string `json:"card_cvv"`
}

// CreatePayment pays the caller's most recent pending order. If the
// balance covers the total it is debited immediately and the payment is
// final; otherwise complete card details are required and a pending
// payment with a confirmation code is created. The whole attempt is one
// transaction.
func (s *PaymentService) CreatePayment(ctx context.Context, userID int64, req *CreatePaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePayment")
	defer span.End()

	var payment models.Payment
	err := s.storage.RunInTx(ctx, func(tx store.Tx) error {
		order, err := tx.LatestPendingOrder(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return newValidationError("no pending order to pay")
		}
		if err != nil {
			return fmt.Errorf("failed to select order: %w", err)
		}

		user, err := tx.UserForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		amount := order.TotalPrice
		orderID := order.ID

		// Balance path: debit and finish in one step.
		if user.Balance.GreaterThanOrEqual(amount) {
			if err := tx.ChargeBalance(ctx, userID, amount); err != nil {
				return fmt.Errorf("failed to charge balance: %w", err)
			}

			payment = models.Payment{
				UserID:        userID,
				OrderID:       &orderID,
				Amount:        amount,
				Status:        models.PaymentStatusPaid,
				TransactionID: uuid.New().String(),
				IsConfirmed:   true,
				PaymentType:   models.PaymentTypeOrder,
				ExpiresAt:     s.now().Add(s.paymentExpiry),
			}
			if err := tx.InsertPayment(ctx, &payment); err != nil {
				return fmt.Errorf("failed to create payment: %w", err)
			}
			return tx.UpdateOrderStatus(ctx, orderID, models.OrderStatusPaid)
		}

		// Card path: all three fields are required.
		var missing []string
		if req.CardNumber == "" {
			missing = append(missing, "card_number")
		}
		if req.CardExpiry == "" {
			missing = append(missing, "card_expiry")
		}
		if req.CardCVV == "" {
			missing = append(missing, "card_cvv")
		}
		if len(missing) > 0 {
			return newValidationError("insufficient funds and card details missing", missing...)
		}

		code, err := generateCode(6)
		if err != nil {
			return err
		}

		payment = models.Payment{
			UserID:           userID,
			OrderID:          &orderID,
			Amount:           amount,
			CardNumber:       req.CardNumber,
			CardExpiry:       req.CardExpiry,
			CardCVV:          req.CardCVV,
			Status:           models.PaymentStatusPending,
			ConfirmationCode: code,
			PaymentType:      models.PaymentTypeOrder,
			ExpiresAt:        s.now().Add(s.paymentExpiry),
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			util.PaymentsFailedTotal.WithLabelValues("validation").Inc()
		} else {
			util.PaymentsFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	if payment.Status == models.PaymentStatusPaid {
		util.PaymentsInitiatedTotal.WithLabelValues("balance").Inc()
		util.PaymentsPaidTotal.WithLabelValues("balance").Inc()
		util.OrdersPaidTotal.Inc()
		s.logger.Info("Payment settled from balance",
			zap.Int64("payment_id", payment.ID),
			zap.Int64("order_id", *payment.OrderID))
		s.publishPaid(ctx, &payment)
	} else {
		util.PaymentsInitiatedTotal.WithLabelValues("card").Inc()
		s.logger.Info("Payment awaiting confirmation",
			zap.Int64("payment_id", payment.ID),
			zap.Int64("order_id", *payment.OrderID))

		event := &models.PaymentPendingEvent{
			BaseEvent: broker.NewBaseEvent(models.EventTypePaymentPending),
			PaymentID: payment.ID,
			OrderID:   *payment.OrderID,
			UserID:    userID,
			Amount:    payment.Amount,
		}
		if err := s.publisher.PublishPaymentPending(ctx, event); err != nil {
			s.logger.Error("Failed to publish PaymentPending event", zap.Error(err))
		}
	}

	return &payment, nil
}

// ConfirmPaymentRequest identifies a payment and carries its code.
type ConfirmPaymentRequest struct {
	PaymentID        int64  `json:"payment_id" binding:"required"`
	ConfirmationCode string `json:"confirmation_code" binding:"required,len=6"`
}

// ConfirmPayment settles a pending card payment. The code must match
// exactly; a confirmed or cancelled payment cannot be confirmed again.
func (s *PaymentService) ConfirmPayment(ctx context.Context, userID int64, req *ConfirmPaymentRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ConfirmPayment")
	defer span.End()

	var payment *models.Payment
	err := s.storage.RunInTx(ctx, func(tx store.Tx) error {
		p, err := tx.PaymentForUpdate(ctx, req.PaymentID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		if p.IsConfirmed {
			return &ConflictError{Message: "payment already confirmed"}
		}
		if p.Status != models.PaymentStatusPending {
			return &ConflictError{Message: fmt.Sprintf("payment is %s", p.Status)}
		}
		if p.ConfirmationCode != req.ConfirmationCode {
			return newValidationError("invalid confirmation code")
		}

		txID := uuid.New().String()
		if err := tx.MarkPaymentPaid(ctx, p.ID, txID); err != nil {
			return fmt.Errorf("failed to mark payment paid: %w", err)
		}
		if p.OrderID != nil {
			if err := tx.UpdateOrderStatus(ctx, *p.OrderID, models.OrderStatusPaid); err != nil {
				return fmt.Errorf("failed to mark order paid: %w", err)
			}
		}

		p.Status = models.PaymentStatusPaid
		p.IsConfirmed = true
		p.TransactionID = txID
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.PaymentsPaidTotal.WithLabelValues("card").Inc()
	util.OrdersPaidTotal.Inc()
	s.logger.Info("Payment confirmed", zap.Int64("payment_id", payment.ID))
	s.publishPaid(ctx, payment)

	return payment, nil
}

// DepositRequest carries a balance top-up.
type DepositRequest struct {
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	CardNumber string          `json:"card_number" binding:"required"`
	CardExpiry string          `json:"card_expiry" binding:"required"`
	CardCVV    string          `json:"card_cvv"`
}

// Deposit credits the balance and records a replenishment payment.
func (s *PaymentService) Deposit(ctx context.Context, userID int64, req *DepositRequest) (*models.Payment, decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Deposit")
	defer span.End()

	if !req.Amount.IsPositive() {
		return nil, decimal.Zero, newValidationError("amount must be positive")
	}

	var payment models.Payment
	var balance decimal.Decimal
	err := s.storage.RunInTx(ctx, func(tx store.Tx) error {
		user, err := tx.UserForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		if err := tx.DepositBalance(ctx, userID, req.Amount); err != nil {
			return fmt.Errorf("failed to deposit: %w", err)
		}
		balance = user.Balance.Add(req.Amount)

		payment = models.Payment{
			UserID:        userID,
			Amount:        req.Amount,
			CardNumber:    req.CardNumber,
			CardExpiry:    req.CardExpiry,
			CardCVV:       req.CardCVV,
			Status:        models.PaymentStatusPaid,
			TransactionID: uuid.New().String(),
			IsConfirmed:   true,
			PaymentType:   models.PaymentTypeDeposit,
			ExpiresAt:     s.now().Add(s.paymentExpiry),
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	util.BalanceDepositsTotal.Inc()
	s.logger.Info("Balance deposited",
		zap.Int64("user_id", userID),
		zap.String("amount", req.Amount.String()))
	s.publishPaid(ctx, &payment)

	return &payment, balance, nil
}

// ListPayments returns the caller's payments.
func (s *PaymentService) ListPayments(ctx context.Context, userID int64) ([]models.Payment, error) {
	return s.storage.PaymentsByUser(ctx, userID)
}

func (s *PaymentService) publishPaid(ctx context.Context, payment *models.Payment) {
	event := &models.PaymentPaidEvent{
		BaseEvent:     broker.NewBaseEvent(models.EventTypePaymentPaid),
		PaymentID:     payment.ID,
		UserID:        payment.UserID,
		Amount:        payment.Amount,
		TransactionID: payment.TransactionID,
		PaymentType:   payment.PaymentType,
	}
	if payment.OrderID != nil {
		event.OrderID = *payment.OrderID
	}
	if err := s.publisher.PublishPaymentPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentPaid event", zap.Error(err))
	}
}
