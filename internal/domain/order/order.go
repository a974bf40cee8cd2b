package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrStatusNotCached is returned by Cache.GetStatus on a cache miss.
// Callers must fall back to the store; the cache is advisory only.
var ErrStatusNotCached = errors.New("order status not cached")

// Status is the processing state of an order. An order is created in
// StatusPending by the storefront; the fulfillment pipeline moves it to
// exactly one of the terminal statuses.
type Status string

const (
	StatusPending       Status = "pending"
	StatusFraudReview   Status = "fraud_review"
	StatusOutOfStock    Status = "out_of_stock"
	StatusPaymentFailed Status = "payment_failed"
	StatusCompleted     Status = "completed"
	StatusError         Status = "error"
)

// Terminal reports whether the pipeline performs no further transitions
// from s. Every status except pending is terminal.
func (s Status) Terminal() bool {
	return s != StatusPending && s != ""
}

func (s Status) String() string { return string(s) }

// Order represents a customer order awaiting fulfillment. The total is
// fixed at creation time (sum of item price snapshots); the pipeline
// mutates only Status and UpdatedAt.
type Order struct {
	ID        int64
	UserID    int64
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a single order line. Price is a snapshot taken when the order
// was created, so later catalog price changes never affect it.
type Item struct {
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Repository defines the store operations the pipeline needs for orders.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListItems(ctx context.Context, orderID int64) ([]Item, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// ListAwaitingReconciliation returns ids of orders that hold a
	// completed payment but never reached the completed status, the
	// window left by a crash between capture and the final transition.
	ListAwaitingReconciliation(ctx context.Context) ([]int64, error)
}

// Cache defines the advisory cache operations for order processing.
// Implementations must treat the store as authoritative: a miss returns
// ErrStatusNotCached and writes may fail without breaking callers.
type Cache interface {
	GetStatus(ctx context.Context, orderID int64) (Status, error)
	SetStatus(ctx context.Context, orderID int64, status Status) error
	SetFraudVerdict(ctx context.Context, orderID int64, verdict string) error
}
