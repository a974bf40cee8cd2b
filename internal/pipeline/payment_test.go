package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopnow/order-service/internal/domain/payment"
)

func TestPaymentProcessor_Capture(t *testing.T) {
	repo := &mockPaymentRepo{}
	proc := NewPaymentProcessor(repo, PaymentConfig{
		MinLatency: fastSim,
		MaxLatency: fastSim,
	})

	err := proc.Capture(context.Background(), 42, decimal.RequireFromString("79.99"))
	require.NoError(t, err)

	captured := repo.payments()
	require.Len(t, captured, 1)
	p := captured[0]
	assert.Equal(t, int64(42), p.OrderID)
	assert.True(t, decimal.RequireFromString("79.99").Equal(p.Amount))
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, "credit_card", p.Method)
	assert.True(t, strings.HasPrefix(p.TransactionID, "txn_"))
	assert.Greater(t, len(p.TransactionID), len("txn_"))
}

func TestPaymentProcessor_UniqueTransactionIDs(t *testing.T) {
	repo := &mockPaymentRepo{}
	proc := NewPaymentProcessor(repo, PaymentConfig{
		MinLatency: fastSim,
		MaxLatency: fastSim,
	})

	require.NoError(t, proc.Capture(context.Background(), 1, decimal.NewFromInt(10)))
	require.NoError(t, proc.Capture(context.Background(), 2, decimal.NewFromInt(20)))

	captured := repo.payments()
	require.Len(t, captured, 2)
	assert.NotEqual(t, captured[0].TransactionID, captured[1].TransactionID)
}

func TestPaymentProcessor_Declined(t *testing.T) {
	repo := &mockPaymentRepo{}
	proc := NewPaymentProcessor(repo, PaymentConfig{
		MinLatency:  fastSim,
		MaxLatency:  fastSim,
		DeclineRate: 1,
	})

	err := proc.Capture(context.Background(), 42, decimal.NewFromInt(10))

	require.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Empty(t, repo.payments(), "a decline must leave no payment row")
}

func TestPaymentProcessor_RepoError(t *testing.T) {
	repo := &mockPaymentRepo{err: errors.New("db write failed")}
	proc := NewPaymentProcessor(repo, PaymentConfig{
		MinLatency: fastSim,
		MaxLatency: fastSim,
	})

	err := proc.Capture(context.Background(), 42, decimal.NewFromInt(10))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPaymentDeclined)
	assert.Contains(t, err.Error(), "record payment for order 42")
}

func TestPaymentProcessor_CustomMethod(t *testing.T) {
	repo := &mockPaymentRepo{}
	proc := NewPaymentProcessor(repo, PaymentConfig{
		MinLatency: fastSim,
		MaxLatency: fastSim,
		Method:     "gift_card",
	})

	require.NoError(t, proc.Capture(context.Background(), 42, decimal.NewFromInt(10)))

	captured := repo.payments()
	require.Len(t, captured, 1)
	assert.Equal(t, "gift_card", captured[0].Method)
}
