package pipeline

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shopnow/order-service/internal/domain/order"
)

// Verdict strings recorded in the fraud audit cache.
const (
	VerdictClean      = "clean"
	VerdictSuspicious = "suspicious"
)

// FraudConfig controls the simulated fraud scoring step. The latency
// bounds and suspicious rate model a cached ML inference; tests pin
// Rand to force either verdict and zero the latency.
type FraudConfig struct {
	// MinLatency and MaxLatency bound the simulated scoring latency.
	MinLatency time.Duration
	MaxLatency time.Duration
	// SuspiciousRate is the probability in [0,1] of a suspicious
	// verdict. Zero disables the injected fault entirely.
	SuspiciousRate float64
	// Rand supplies uniform values in [0,1). Defaults to math/rand.
	Rand func() float64
}

func (c *FraudConfig) setDefaults() {
	if c.MaxLatency == 0 {
		c.MinLatency = 10 * time.Millisecond
		c.MaxLatency = 50 * time.Millisecond
	}
	if c.Rand == nil {
		c.Rand = rand.Float64
	}
}

// FraudChecker evaluates an order for suspicious-activity risk. It never
// mutates order status; the verdict is returned to the orchestrator and
// recorded in the cache as an audit trail.
type FraudChecker struct {
	cache  order.Cache
	cfg    FraudConfig
	tracer trace.Tracer
}

// NewFraudChecker creates a FraudChecker writing verdicts to cache.
func NewFraudChecker(cache order.Cache, cfg FraudConfig) *FraudChecker {
	cfg.setDefaults()
	return &FraudChecker{
		cache:  cache,
		cfg:    cfg,
		tracer: otel.Tracer("order-pipeline"),
	}
}

// Check scores the order and reports whether it passed (true = clean).
// A cache-write failure does not fail the check; only a cancelled or
// expired context does.
func (f *FraudChecker) Check(ctx context.Context, orderID int64) (bool, error) {
	ctx, span := f.tracer.Start(ctx, "fraud-detection",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	latency := f.cfg.MinLatency +
		time.Duration(f.cfg.Rand()*float64(f.cfg.MaxLatency-f.cfg.MinLatency))
	if err := sleep(ctx, latency); err != nil {
		span.RecordError(err)
		return false, err
	}

	suspicious := f.cfg.Rand() < f.cfg.SuspiciousRate
	verdict := VerdictClean
	if suspicious {
		verdict = VerdictSuspicious
	}
	span.SetAttributes(
		attribute.String("fraud.result", verdict),
		attribute.Int64("fraud.latency_ms", latency.Milliseconds()),
	)

	if err := f.cache.SetFraudVerdict(ctx, orderID, verdict); err != nil {
		zctx.From(ctx).Warn("Failed to cache fraud verdict",
			zap.Int64("order_id", orderID), zap.Error(err))
	}

	zctx.From(ctx).Debug("Fraud check finished",
		zap.Int64("order_id", orderID),
		zap.String("verdict", verdict),
		zap.Duration("latency", latency))

	return !suspicious, nil
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
