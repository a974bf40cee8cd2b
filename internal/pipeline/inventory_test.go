package pipeline

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopnow/order-service/internal/domain/order"
	"github.com/shopnow/order-service/internal/domain/product"
)

func inventoryOrders(items ...order.Item) *mockOrderRepo {
	return &mockOrderRepo{items: map[int64][]order.Item{42: items}}
}

func TestInventoryChecker_AllAvailable(t *testing.T) {
	orders := inventoryOrders(
		order.Item{OrderID: 42, ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		order.Item{OrderID: 42, ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("7.25")},
	)
	products := &mockProductRepo{byID: map[int64]*product.Product{
		1: testProduct(1, 5, "10.00"),
		2: testProduct(2, 1, "7.25"),
	}}

	available, err := NewInventoryChecker(orders, products).Check(context.Background(), 42)

	require.NoError(t, err)
	assert.True(t, available)
}

func TestInventoryChecker_InsufficientStock(t *testing.T) {
	orders := inventoryOrders(
		order.Item{OrderID: 42, ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		order.Item{OrderID: 42, ProductID: 2, Quantity: 3, Price: decimal.RequireFromString("7.25")},
	)
	products := &mockProductRepo{byID: map[int64]*product.Product{
		1: testProduct(1, 5, "10.00"),
		2: testProduct(2, 1, "7.25"),
	}}

	available, err := NewInventoryChecker(orders, products).Check(context.Background(), 42)

	require.NoError(t, err)
	assert.False(t, available, "one short item makes the whole order unavailable")
}

func TestInventoryChecker_MissingProductUnavailable(t *testing.T) {
	orders := inventoryOrders(
		order.Item{OrderID: 42, ProductID: 99, Quantity: 1, Price: decimal.RequireFromString("10.00")},
	)
	products := &mockProductRepo{byID: map[int64]*product.Product{}}

	available, err := NewInventoryChecker(orders, products).Check(context.Background(), 42)

	require.NoError(t, err, "a vanished product is unavailability, not a fault")
	assert.False(t, available)
}

func TestInventoryChecker_NoItems(t *testing.T) {
	orders := inventoryOrders()

	available, err := NewInventoryChecker(orders, &mockProductRepo{}).Check(context.Background(), 42)

	require.NoError(t, err)
	assert.True(t, available)
}

func TestInventoryChecker_ListItemsError(t *testing.T) {
	orders := &mockOrderRepo{listErr: errors.New("connection reset")}

	_, err := NewInventoryChecker(orders, &mockProductRepo{}).Check(context.Background(), 42)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestInventoryChecker_ProductLookupError(t *testing.T) {
	orders := inventoryOrders(
		order.Item{OrderID: 42, ProductID: 1, Quantity: 1, Price: decimal.RequireFromString("10.00")},
	)
	products := &mockProductRepo{getErr: errors.New("connection reset")}

	_, err := NewInventoryChecker(orders, products).Check(context.Background(), 42)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get product 1")
}
