package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shopnow/order-service/internal/domain/payment"
)

// ErrPaymentDeclined indicates the gateway declined the capture. It is a
// business outcome consumed by the orchestrator, never surfaced as a
// transport error.
var ErrPaymentDeclined = errors.New("payment declined by gateway")

// PaymentConfig controls the simulated payment gateway.
type PaymentConfig struct {
	// MinLatency and MaxLatency bound the simulated gateway latency.
	MinLatency time.Duration
	MaxLatency time.Duration
	// DeclineRate is the probability in [0,1] of a declined capture.
	// Zero disables the injected fault entirely.
	DeclineRate float64
	// Method is the payment method recorded on successful captures.
	Method string
	// Rand supplies uniform values in [0,1). Defaults to math/rand.
	Rand func() float64
}

func (c *PaymentConfig) setDefaults() {
	if c.MaxLatency == 0 {
		c.MinLatency = 20 * time.Millisecond
		c.MaxLatency = 60 * time.Millisecond
	}
	if c.Method == "" {
		c.Method = "credit_card"
	}
	if c.Rand == nil {
		c.Rand = rand.Float64
	}
}

// PaymentProcessor attempts to capture payment for an order's total.
// It is the only component with a financial side effect; the
// orchestrator invokes it at most once per pipeline run.
type PaymentProcessor struct {
	payments payment.Repository
	cfg      PaymentConfig
	tracer   trace.Tracer
}

// NewPaymentProcessor creates a PaymentProcessor persisting captures to
// the given repository.
func NewPaymentProcessor(payments payment.Repository, cfg PaymentConfig) *PaymentProcessor {
	cfg.setDefaults()
	return &PaymentProcessor{
		payments: payments,
		cfg:      cfg,
		tracer:   otel.Tracer("order-pipeline"),
	}
}

// Capture charges the order's total. On decline it returns
// ErrPaymentDeclined and writes nothing; on success it writes exactly
// one payment row with a fresh transaction id.
func (p *PaymentProcessor) Capture(ctx context.Context, orderID int64, amount decimal.Decimal) error {
	ctx, span := p.tracer.Start(ctx, "payment-processing",
		trace.WithAttributes(
			attribute.Int64("order.id", orderID),
			attribute.String("payment.amount", amount.String()),
		))
	defer span.End()

	latency := p.cfg.MinLatency +
		time.Duration(p.cfg.Rand()*float64(p.cfg.MaxLatency-p.cfg.MinLatency))
	if err := sleep(ctx, latency); err != nil {
		span.RecordError(err)
		return err
	}

	if p.cfg.Rand() < p.cfg.DeclineRate {
		span.SetAttributes(attribute.String("payment.status", "declined"))
		span.RecordError(ErrPaymentDeclined)
		return ErrPaymentDeclined
	}

	pay := &payment.Payment{
		OrderID:       orderID,
		Amount:        amount,
		Status:        payment.StatusCompleted,
		Method:        p.cfg.Method,
		TransactionID: "txn_" + uuid.NewString(),
	}
	if err := p.payments.Create(ctx, pay); err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "record payment for order %d", orderID)
	}

	span.SetAttributes(
		attribute.String("payment.status", payment.StatusCompleted),
		attribute.Int64("payment.latency_ms", latency.Milliseconds()),
	)
	zctx.From(ctx).Info("Payment captured",
		zap.Int64("order_id", orderID),
		zap.String("amount", amount.String()),
		zap.String("transaction_id", pay.TransactionID))

	return nil
}
