package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StatusCompleted is the only status ever persisted: a declined capture
// writes no row at all, so failed attempts leave no payment record.
const StatusCompleted = "completed"

// Payment records a successful capture attempt for an order. The
// transaction id is generated fresh per attempt and is unique.
type Payment struct {
	ID            int64
	OrderID       int64
	Amount        decimal.Decimal
	Status        string
	Method        string
	TransactionID string
	CreatedAt     time.Time
}

// Repository defines persistence for payment rows.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
}
