package pipeline

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shopnow/order-service/internal/domain/order"
	"github.com/shopnow/order-service/internal/domain/product"
)

// InventoryChecker verifies stock availability for every line item of an
// order. Availability is all-or-nothing: one short item makes the whole
// order unavailable. Unavailability is a normal outcome, never an error;
// only store access faults are errors.
type InventoryChecker struct {
	orders   order.Repository
	products product.Repository
	tracer   trace.Tracer
}

// NewInventoryChecker creates an InventoryChecker over the given stores.
func NewInventoryChecker(orders order.Repository, products product.Repository) *InventoryChecker {
	return &InventoryChecker{
		orders:   orders,
		products: products,
		tracer:   otel.Tracer("order-pipeline"),
	}
}

// Check reports whether every item of the order can be fulfilled at its
// requested quantity from current stock.
func (c *InventoryChecker) Check(ctx context.Context, orderID int64) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "inventory-check",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	items, err := c.orders.ListItems(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return false, errors.Wrapf(err, "list items of order %d", orderID)
	}

	allAvailable := true
	for _, item := range items {
		available, err := c.itemAvailable(ctx, item)
		if err != nil {
			span.RecordError(err)
			return false, err
		}
		span.SetAttributes(attribute.Bool(
			fmt.Sprintf("inventory.product_%d.available", item.ProductID), available))
		if !available {
			allAvailable = false
			zctx.From(ctx).Warn("Product not available",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", item.ProductID),
				zap.Int("requested", item.Quantity))
		}
	}

	span.SetAttributes(attribute.Bool("inventory.all_available", allAvailable))
	return allAvailable, nil
}

func (c *InventoryChecker) itemAvailable(ctx context.Context, item order.Item) (bool, error) {
	p, err := c.products.GetByID(ctx, item.ProductID)
	if err != nil {
		// A vanished product makes the item unavailable, not the check broken.
		if errors.Is(err, product.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrapf(err, "get product %d", item.ProductID)
	}
	return p.Stock >= item.Quantity, nil
}
