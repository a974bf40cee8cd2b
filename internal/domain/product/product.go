package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item. Stock is decremented only by a
// confirmed fulfillment elsewhere; the pipeline reads it to decide
// availability and never writes it.
type Product struct {
	ID    int64
	SKU   string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Repository defines read operations over the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
}
