// Package pipeline implements the order-fulfillment pipeline: fraud
// screening and inventory verification run concurrently, the decision
// policy gates payment capture on their outcome, and every run ends in
// exactly one terminal status write.
package pipeline

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopnow/order-service/internal/domain/order"
)

// Config holds the orchestrator's own knobs; the component simulators
// carry theirs.
type Config struct {
	// CheckTimeout bounds each of the two concurrent checks. A timeout
	// is an infrastructure fault, never a business decision.
	CheckTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.CheckTimeout == 0 {
		c.CheckTimeout = 5 * time.Second
	}
}

// Pipeline orchestrates a single processing attempt for an order.
type Pipeline struct {
	orders    order.Repository
	fraud     *FraudChecker
	inventory *InventoryChecker
	payments  *PaymentProcessor
	status    *StatusManager
	cfg       Config

	tracer    trace.Tracer
	processed metric.Int64Counter
}

// New creates a Pipeline from its components.
func New(
	orders order.Repository,
	fraud *FraudChecker,
	inventory *InventoryChecker,
	payments *PaymentProcessor,
	status *StatusManager,
	cfg Config,
) *Pipeline {
	cfg.setDefaults()

	meter := otel.Meter("order-pipeline")
	processed, err := meter.Int64Counter("orders_processed",
		metric.WithDescription("Orders processed by terminal outcome"))
	if err != nil {
		// The noop meter never errors; a misconfigured real one
		// should not take the pipeline down over a counter.
		zap.L().Warn("Failed to create orders_processed counter", zap.Error(err))
	}

	return &Pipeline{
		orders:    orders,
		fraud:     fraud,
		inventory: inventory,
		payments:  payments,
		status:    status,
		cfg:       cfg,
		tracer:    otel.Tracer("order-pipeline"),
		processed: processed,
	}
}

// Process drives one fulfillment attempt for the order and returns its
// terminal status. Business outcomes (fraud_review, out_of_stock,
// payment_failed, completed) return a nil error; infrastructure faults
// move the order to the error status best-effort and are propagated.
// Re-invoking on an already-terminal order is a no-op returning the
// existing status.
func (p *Pipeline) Process(ctx context.Context, orderID int64) (order.Status, error) {
	ctx, span := p.tracer.Start(ctx, "process-order",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	lg := zctx.From(ctx).With(zap.Int64("order_id", orderID))
	lg.Info("Processing order")

	o, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			span.SetAttributes(attribute.String("order.result", "not_found"))
			return "", err
		}
		return "", p.fail(ctx, span, orderID, errors.Wrap(err, "load order"))
	}
	span.SetAttributes(
		attribute.String("order.total", o.Total.String()),
		attribute.Int64("order.user_id", o.UserID),
	)

	// A retried /process call on a finished order must not re-run checks
	// or attempt a second capture.
	if o.Status.Terminal() {
		lg.Info("Order already in terminal status, skipping",
			zap.String("status", o.Status.String()))
		span.SetAttributes(
			attribute.String("order.result", o.Status.String()),
			attribute.Bool("order.replay", true),
		)
		return o.Status, nil
	}

	fraudPassed, available, err := p.runChecks(ctx, orderID)
	if err != nil {
		return "", p.fail(ctx, span, orderID, err)
	}

	// Both results are always computed and logged for audit, whatever
	// the decision below.
	lg.Debug("Checks joined",
		zap.Bool("fraud_passed", fraudPassed),
		zap.Bool("inventory_available", available))

	if !fraudPassed {
		return p.finish(ctx, span, orderID, order.StatusFraudReview)
	}
	if !available {
		return p.finish(ctx, span, orderID, order.StatusOutOfStock)
	}

	if err := p.payments.Capture(ctx, orderID, o.Total); err != nil {
		if errors.Is(err, ErrPaymentDeclined) {
			return p.finish(ctx, span, orderID, order.StatusPaymentFailed)
		}
		return "", p.fail(ctx, span, orderID, err)
	}

	return p.finish(ctx, span, orderID, order.StatusCompleted)
}

// runChecks fans out the fraud and inventory checks and joins both
// results. The checks are independent: neither cancels the other, each
// runs under its own timeout, and an infrastructure fault from either
// surfaces after both have finished.
func (p *Pipeline) runChecks(ctx context.Context, orderID int64) (fraudPassed, available bool, err error) {
	var g errgroup.Group
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
		defer cancel()
		var cerr error
		fraudPassed, cerr = p.fraud.Check(cctx, orderID)
		return cerr
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
		defer cancel()
		var cerr error
		available, cerr = p.inventory.Check(cctx, orderID)
		return cerr
	})
	if err := g.Wait(); err != nil {
		return false, false, errors.Wrap(err, "run checks")
	}
	return fraudPassed, available, nil
}

// finish records the terminal status and returns it as the business
// outcome. A failed status write is an infrastructure fault.
func (p *Pipeline) finish(ctx context.Context, span trace.Span, orderID int64, st order.Status) (order.Status, error) {
	if err := p.status.Transition(ctx, orderID, st); err != nil {
		return "", p.fail(ctx, span, orderID, err)
	}
	span.SetAttributes(attribute.String("order.result", st.String()))
	p.count(ctx, st)
	return st, nil
}

// fail moves the order to the error status best-effort and returns the
// original fault. The error write uses a detached context so a cancelled
// caller still leaves an error marker behind.
func (p *Pipeline) fail(ctx context.Context, span trace.Span, orderID int64, cause error) error {
	span.RecordError(cause)
	span.SetAttributes(attribute.String("order.result", order.StatusError.String()))
	zctx.From(ctx).Error("Order processing failed",
		zap.Int64("order_id", orderID), zap.Error(cause))

	errCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.status.Transition(errCtx, orderID, order.StatusError); err != nil {
		zctx.From(ctx).Error("Failed to record error status",
			zap.Int64("order_id", orderID), zap.Error(err))
	}
	p.count(ctx, order.StatusError)
	return cause
}

func (p *Pipeline) count(ctx context.Context, st order.Status) {
	if p.processed == nil {
		return
	}
	p.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", st.String())))
}
