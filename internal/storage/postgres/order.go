package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopnow/order-service/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, user_id, total, status, created_at, updated_at
		FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT order_id, product_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`

	awaitingReconciliationSQL = `SELECT o.id FROM orders o
		JOIN payments p ON p.order_id = o.id AND p.status = 'completed'
		WHERE o.status <> 'completed' ORDER BY o.id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return &o, nil
}

// ListItems returns the line items of an order in insertion order.
func (r *OrderRepository) ListItems(ctx context.Context, orderID int64) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// UpdateStatus writes the new status and bumps updated_at. It is the
// authoritative status write; callers refresh the cache afterwards.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, status.String(), id)
	if err != nil {
		return fmt.Errorf("updating status of order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListAwaitingReconciliation returns orders with a completed payment whose
// status never reached completed. Such rows only appear when a crash lands
// between the capture and the final status write.
func (r *OrderRepository) ListAwaitingReconciliation(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, awaitingReconciliationSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders awaiting reconciliation: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt)
	o.Status = order.Status(status)
	return o, err
}

func scanItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.Price)
	return it, err
}
