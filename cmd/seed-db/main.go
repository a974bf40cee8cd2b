// Command seed-db loads demo catalog data and a few pending orders into
// the database so the pipeline can be exercised end to end locally.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopnow/order-service/internal/storage/postgres"
)

type seedProduct struct {
	SKU   string
	Name  string
	Price decimal.Decimal
	Stock int
}

type seedItem struct {
	SKU      string
	Quantity int
}

type seedOrder struct {
	UserID int64
	Items  []seedItem
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("POSTGRES_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedOrders(ctx, pool); err != nil {
		return errors.Wrap(err, "seed orders")
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (sku, name, price, stock)
VALUES ($1, $2, $3, $4)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock
`

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []seedProduct{
		{SKU: "WDG-STD", Name: "Standard Widget", Price: decimal.NewFromFloat(10.00), Stock: 5},
		{SKU: "WDG-PRO", Name: "Pro Widget", Price: decimal.NewFromFloat(24.50), Stock: 40},
		{SKU: "GZM-MINI", Name: "Mini Gizmo", Price: decimal.NewFromFloat(7.25), Stock: 1},
		{SKU: "GZM-MAX", Name: "Max Gizmo", Price: decimal.NewFromFloat(59.99), Stock: 12},
		{SKU: "SPR-KIT", Name: "Spare Parts Kit", Price: decimal.NewFromFloat(15.75), Stock: 0},
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.SKU, p.Name, p.Price, p.Stock); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.SKU)
		}
		slog.Info("upserted product",
			slog.String("sku", p.SKU),
			slog.String("name", p.Name),
			slog.Int("stock", p.Stock))
	}

	return nil
}

const (
	productIDBySKUSQL = `SELECT id, price FROM products WHERE sku = $1`
	insertOrderSQL    = `INSERT INTO orders (user_id, total, status) VALUES ($1, $2, 'pending') RETURNING id`
	insertItemSQL     = `INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4)`
	pendingOrdersSQL  = `SELECT COUNT(*) FROM orders WHERE status = 'pending'`
)

func seedOrders(ctx context.Context, pool *pgxpool.Pool) error {
	// Seeding is idempotent at the order level: if pending demo orders
	// already exist, leave them alone instead of stacking duplicates.
	var pending int
	if err := pool.QueryRow(ctx, pendingOrdersSQL).Scan(&pending); err != nil {
		return errors.Wrap(err, "count pending orders")
	}
	if pending > 0 {
		slog.Info("pending orders already present, skipping", slog.Int("count", pending))
		return nil
	}

	orders := []seedOrder{
		// Fulfillable from stock.
		{UserID: 1001, Items: []seedItem{{SKU: "WDG-STD", Quantity: 2}, {SKU: "GZM-MAX", Quantity: 1}}},
		// Asks for more Mini Gizmos than exist.
		{UserID: 1002, Items: []seedItem{{SKU: "GZM-MINI", Quantity: 3}}},
		// References an out-of-stock product.
		{UserID: 1003, Items: []seedItem{{SKU: "SPR-KIT", Quantity: 1}, {SKU: "WDG-PRO", Quantity: 1}}},
	}

	slog.Info("creating demo orders", slog.Int("count", len(orders)))

	for _, o := range orders {
		if err := createOrder(ctx, pool, o); err != nil {
			return errors.Wrapf(err, "create order for user %d", o.UserID)
		}
	}

	return nil
}

func createOrder(ctx context.Context, pool *pgxpool.Pool, o seedOrder) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	type line struct {
		productID int64
		quantity  int
		price     decimal.Decimal
	}

	var (
		lines []line
		total = decimal.Zero
	)
	for _, item := range o.Items {
		var (
			productID int64
			price     decimal.Decimal
		)
		if err := tx.QueryRow(ctx, productIDBySKUSQL, item.SKU).Scan(&productID, &price); err != nil {
			return errors.Wrapf(err, "look up product %s", item.SKU)
		}
		lines = append(lines, line{productID: productID, quantity: item.Quantity, price: price})
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	var orderID int64
	if err := tx.QueryRow(ctx, insertOrderSQL, o.UserID, total).Scan(&orderID); err != nil {
		return errors.Wrap(err, "insert order")
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, insertItemSQL, orderID, l.productID, l.quantity, l.price); err != nil {
			return errors.Wrapf(err, "insert item for product %d", l.productID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}

	slog.Info("created order",
		slog.Int64("order_id", orderID),
		slog.Int64("user_id", o.UserID),
		slog.String("total", total.String()))

	return nil
}
