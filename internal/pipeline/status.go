package pipeline

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shopnow/order-service/internal/domain/order"
)

// StatusManager applies a status transition to an order. The store write
// is the success criterion; the cache refresh afterwards is advisory and
// its failure is logged and swallowed.
type StatusManager struct {
	orders order.Repository
	cache  order.Cache
	tracer trace.Tracer
}

// NewStatusManager creates a StatusManager over the given store and cache.
func NewStatusManager(orders order.Repository, cache order.Cache) *StatusManager {
	return &StatusManager{
		orders: orders,
		cache:  cache,
		tracer: otel.Tracer("order-pipeline"),
	}
}

// Transition writes the new status (plus updated timestamp) to the store,
// then refreshes the cache best-effort. Store first, cache second: the
// cache must never be ahead of a failed store write.
func (m *StatusManager) Transition(ctx context.Context, orderID int64, status order.Status) error {
	ctx, span := m.tracer.Start(ctx, "update-order-status",
		trace.WithAttributes(
			attribute.Int64("order.id", orderID),
			attribute.String("order.status", status.String()),
		))
	defer span.End()

	if err := m.orders.UpdateStatus(ctx, orderID, status); err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "update status of order %d", orderID)
	}

	if err := m.cache.SetStatus(ctx, orderID, status); err != nil {
		zctx.From(ctx).Warn("Failed to refresh status cache",
			zap.Int64("order_id", orderID),
			zap.String("status", status.String()),
			zap.Error(err))
	}

	zctx.From(ctx).Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status.String()))
	return nil
}
