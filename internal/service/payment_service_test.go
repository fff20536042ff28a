package service

import (
	"context"
	"testing"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentService(m *memStore) (*PaymentService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewPaymentService(m, pub, 2*time.Minute), pub
}

func (m *memStore) addPendingOrder(userID int64, total decimal.Decimal) *models.Order {
	o := &models.Order{
		ID:         m.id(),
		UserID:     userID,
		TotalPrice: total,
		Status:     models.OrderStatusPending,
		ExpiresAt:  time.Now().Add(time.Minute),
	}
	m.orders[o.ID] = o
	return o
}

func TestCreatePaymentBalancePath(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.NewFromInt(500), true)
	order := m.addPendingOrder(user.ID, decimal.NewFromInt(300))

	svc, pub := newPaymentService(m)

	payment, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	assert.True(t, payment.IsConfirmed)
	assert.False(t, payment.RequiresConfirmation())
	assert.NotEmpty(t, payment.TransactionID)
	assert.Empty(t, payment.ConfirmationCode)

	assert.True(t, m.users[user.ID].Balance.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, models.OrderStatusPaid, m.orders[order.ID].Status)

	require.Len(t, pub.paid, 1)
	assert.Equal(t, payment.ID, pub.paid[0].PaymentID)
	assert.Empty(t, pub.pending)
}

func TestCreatePaymentCardPath(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.NewFromInt(10), true)
	order := m.addPendingOrder(user.ID, decimal.NewFromInt(300))

	svc, pub := newPaymentService(m)

	payment, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{
		CardNumber: "4111111111111111",
		CardExpiry: "12/27",
		CardCVV:    "123",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.True(t, payment.RequiresConfirmation())
	assert.Len(t, payment.ConfirmationCode, 6)
	for _, d := range payment.ConfirmationCode {
		assert.True(t, d >= '0' && d <= '9')
	}

	// The balance stays untouched and the order stays pending until
	// the code is confirmed.
	assert.True(t, m.users[user.ID].Balance.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, models.OrderStatusPending, m.orders[order.ID].Status)

	require.Len(t, pub.pending, 1)
	assert.Equal(t, payment.ID, pub.pending[0].PaymentID)
	assert.Empty(t, pub.paid)
}

func TestCreatePaymentCardDetailsMissing(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.Zero, true)
	m.addPendingOrder(user.ID, decimal.NewFromInt(300))

	svc, _ := newPaymentService(m)

	_, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{
		CardNumber: "4111111111111111",
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.ElementsMatch(t, []string{"card_expiry", "card_cvv"}, vErr.Fields)
	assert.Empty(t, m.payments)
}

func TestCreatePaymentNoPendingOrder(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.NewFromInt(500), true)

	svc, _ := newPaymentService(m)

	_, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "no pending order")
}

func TestCreatePaymentPaysLatestPendingOrder(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.NewFromInt(1000), true)
	m.addPendingOrder(user.ID, decimal.NewFromInt(100))
	latest := m.addPendingOrder(user.ID, decimal.NewFromInt(200))

	svc, _ := newPaymentService(m)

	payment, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{})
	require.NoError(t, err)

	require.NotNil(t, payment.OrderID)
	assert.Equal(t, latest.ID, *payment.OrderID)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(200)))
}

func TestConfirmPayment(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.Zero, true)
	order := m.addPendingOrder(user.ID, decimal.NewFromInt(300))

	svc, pub := newPaymentService(m)

	pending, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{
		CardNumber: "4111111111111111",
		CardExpiry: "12/27",
		CardCVV:    "123",
	})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmPayment(context.Background(), user.ID, &ConfirmPaymentRequest{
		PaymentID:        pending.ID,
		ConfirmationCode: pending.ConfirmationCode,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, confirmed.Status)
	assert.True(t, confirmed.IsConfirmed)
	assert.NotEmpty(t, confirmed.TransactionID)
	assert.Equal(t, models.OrderStatusPaid, m.orders[order.ID].Status)
	require.Len(t, pub.paid, 1)
}

func TestConfirmPaymentWrongCode(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.Zero, true)
	order := m.addPendingOrder(user.ID, decimal.NewFromInt(300))

	svc, _ := newPaymentService(m)

	pending, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{
		CardNumber: "4111111111111111",
		CardExpiry: "12/27",
		CardCVV:    "123",
	})
	require.NoError(t, err)

	wrong := "000000"
	if pending.ConfirmationCode == wrong {
		wrong = "000001"
	}

	_, err = svc.ConfirmPayment(context.Background(), user.ID, &ConfirmPaymentRequest{
		PaymentID:        pending.ID,
		ConfirmationCode: wrong,
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, models.PaymentStatusPending, m.payments[pending.ID].Status)
	assert.Equal(t, models.OrderStatusPending, m.orders[order.ID].Status)
}

func TestConfirmPaymentTwice(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.Zero, true)
	m.addPendingOrder(user.ID, decimal.NewFromInt(300))

	svc, _ := newPaymentService(m)

	pending, err := svc.CreatePayment(context.Background(), user.ID, &CreatePaymentRequest{
		CardNumber: "4111111111111111",
		CardExpiry: "12/27",
		CardCVV:    "123",
	})
	require.NoError(t, err)

	req := &ConfirmPaymentRequest{
		PaymentID:        pending.ID,
		ConfirmationCode: pending.ConfirmationCode,
	}
	_, err = svc.ConfirmPayment(context.Background(), user.ID, req)
	require.NoError(t, err)

	_, err = svc.ConfirmPayment(context.Background(), user.ID, req)

	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
}

func TestConfirmPaymentScopedToOwner(t *testing.T) {
	m := newMemStore()
	owner := m.addUser("owner@example.com", decimal.Zero, true)
	other := m.addUser("other@example.com", decimal.Zero, true)
	m.addPendingOrder(owner.ID, decimal.NewFromInt(300))

	svc, _ := newPaymentService(m)

	pending, err := svc.CreatePayment(context.Background(), owner.ID, &CreatePaymentRequest{
		CardNumber: "4111111111111111",
		CardExpiry: "12/27",
		CardCVV:    "123",
	})
	require.NoError(t, err)

	_, err = svc.ConfirmPayment(context.Background(), other.ID, &ConfirmPaymentRequest{
		PaymentID:        pending.ID,
		ConfirmationCode: pending.ConfirmationCode,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeposit(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.NewFromInt(50), true)

	svc, pub := newPaymentService(m)

	payment, balance, err := svc.Deposit(context.Background(), user.ID, &DepositRequest{
		Amount:     decimal.NewFromInt(200),
		CardNumber: "4111111111111111",
		CardExpiry: "12/27",
	})
	require.NoError(t, err)

	assert.True(t, balance.Equal(decimal.NewFromInt(250)))
	assert.True(t, m.users[user.ID].Balance.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, models.PaymentTypeDeposit, payment.PaymentType)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.Len(t, pub.paid, 1)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	m := newMemStore()
	user := m.addUser("buyer@example.com", decimal.NewFromInt(50), true)

	svc, _ := newPaymentService(m)

	_, _, err := svc.Deposit(context.Background(), user.ID, &DepositRequest{
		Amount: decimal.NewFromInt(-10),
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, m.users[user.ID].Balance.Equal(decimal.NewFromInt(50)))
}
