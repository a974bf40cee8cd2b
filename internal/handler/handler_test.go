package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopnow/order-service/internal/domain/order"
)

// --- Mock implementations ---

type mockProcessor struct {
	status order.Status
	err    error

	lastOrderID int64
}

func (m *mockProcessor) Process(_ context.Context, orderID int64) (order.Status, error) {
	m.lastOrderID = orderID
	return m.status, m.err
}

type mockOrderRepo struct {
	orders map[int64]*order.Order
	getErr error
}

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListItems(_ context.Context, _ int64) ([]order.Item, error) {
	return nil, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ int64, _ order.Status) error {
	return nil
}

func (m *mockOrderRepo) ListAwaitingReconciliation(_ context.Context) ([]int64, error) {
	return nil, nil
}

type mockCache struct {
	statuses map[int64]order.Status
	getErr   error
}

func (m *mockCache) GetStatus(_ context.Context, orderID int64) (order.Status, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	st, ok := m.statuses[orderID]
	if !ok {
		return "", order.ErrStatusNotCached
	}
	return st, nil
}

func (m *mockCache) SetStatus(_ context.Context, _ int64, _ order.Status) error {
	return nil
}

func (m *mockCache) SetFraudVerdict(_ context.Context, _ int64, _ string) error {
	return nil
}

// --- Helpers ---

func newTestRouter(proc *mockProcessor, orders *mockOrderRepo, cache *mockCache) chi.Router {
	if orders == nil {
		orders = &mockOrderRepo{orders: map[int64]*order.Order{}}
	}
	if cache == nil {
		cache = &mockCache{statuses: map[int64]order.Status{}}
	}
	r := chi.NewRouter()
	New(proc, orders, cache).Register(r)
	return r
}

func doRequest(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Tests ---

func TestProcessOrder_Completed(t *testing.T) {
	proc := &mockProcessor{status: order.StatusCompleted}
	router := newTestRouter(proc, nil, nil)

	rec := doRequest(t, router, http.MethodPost, "/process", `{"order_id": 42}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), proc.lastOrderID)

	resp := decodeBody[processResponse](t, rec)
	assert.Equal(t, int64(42), resp.OrderID)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "Order processed successfully", resp.Message)
}

func TestProcessOrder_BusinessOutcomesAre200(t *testing.T) {
	outcomes := map[order.Status]string{
		order.StatusFraudReview:   "Order flagged for fraud review",
		order.StatusOutOfStock:    "One or more items are out of stock",
		order.StatusPaymentFailed: "Payment processing failed",
	}
	for status, message := range outcomes {
		t.Run(status.String(), func(t *testing.T) {
			router := newTestRouter(&mockProcessor{status: status}, nil, nil)

			rec := doRequest(t, router, http.MethodPost, "/process", `{"order_id": 42}`)

			require.Equal(t, http.StatusOK, rec.Code)
			resp := decodeBody[processResponse](t, rec)
			assert.Equal(t, status.String(), resp.Status)
			assert.Equal(t, message, resp.Message)
		})
	}
}

func TestProcessOrder_MissingOrderID(t *testing.T) {
	router := newTestRouter(&mockProcessor{}, nil, nil)

	for _, body := range []string{``, `{}`, `{"order_id": 0}`, `{"order_id": -1}`, `not json`} {
		rec := doRequest(t, router, http.MethodPost, "/process", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %q", body)
	}
}

func TestProcessOrder_NotFound(t *testing.T) {
	router := newTestRouter(&mockProcessor{err: order.ErrNotFound}, nil, nil)

	rec := doRequest(t, router, http.MethodPost, "/process", `{"order_id": 999}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Order not found", resp["error"])
}

func TestProcessOrder_PipelineFault(t *testing.T) {
	router := newTestRouter(&mockProcessor{err: errors.New("connection reset")}, nil, nil)

	rec := doRequest(t, router, http.MethodPost, "/process", `{"order_id": 42}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Failed to process order", resp["error"])
	assert.NotContains(t, rec.Body.String(), "connection reset",
		"internal fault details must not leak to clients")
}

func TestOrderStatus_FromCache(t *testing.T) {
	cache := &mockCache{statuses: map[int64]order.Status{42: order.StatusCompleted}}
	router := newTestRouter(&mockProcessor{}, nil, cache)

	rec := doRequest(t, router, http.MethodGet, "/status/42", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[statusResponse](t, rec)
	assert.Equal(t, int64(42), resp.OrderID)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "cache", resp.Source)
}

func TestOrderStatus_CacheMissFallsBack(t *testing.T) {
	orders := &mockOrderRepo{orders: map[int64]*order.Order{
		42: {ID: 42, UserID: 7, Total: decimal.NewFromInt(10), Status: order.StatusPending},
	}}
	router := newTestRouter(&mockProcessor{}, orders, nil)

	rec := doRequest(t, router, http.MethodGet, "/status/42", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[statusResponse](t, rec)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "database", resp.Source)
}

func TestOrderStatus_CacheFaultFallsBack(t *testing.T) {
	orders := &mockOrderRepo{orders: map[int64]*order.Order{
		42: {ID: 42, UserID: 7, Total: decimal.NewFromInt(10), Status: order.StatusCompleted},
	}}
	cache := &mockCache{getErr: errors.New("redis down")}
	router := newTestRouter(&mockProcessor{}, orders, cache)

	rec := doRequest(t, router, http.MethodGet, "/status/42", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[statusResponse](t, rec)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "database", resp.Source)
}

func TestOrderStatus_NotFound(t *testing.T) {
	router := newTestRouter(&mockProcessor{}, nil, nil)

	rec := doRequest(t, router, http.MethodGet, "/status/999", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderStatus_InvalidID(t *testing.T) {
	router := newTestRouter(&mockProcessor{}, nil, nil)

	for _, path := range []string{"/status/abc", "/status/0", "/status/-5"} {
		rec := doRequest(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path: %s", path)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&mockProcessor{}, nil, nil)

	rec := doRequest(t, router, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[healthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceName, resp.Service)
	assert.NotEmpty(t, resp.Timestamp)
	assert.GreaterOrEqual(t, resp.Uptime, 0.0)
}
