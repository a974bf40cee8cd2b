// Package handler exposes the fulfillment pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopnow/order-service/internal/domain/order"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "order-service"

// Processor runs one fulfillment attempt for an order.
type Processor interface {
	Process(ctx context.Context, orderID int64) (order.Status, error)
}

// Handler holds the HTTP-facing dependencies. The status read path goes
// to the cache first and falls back to the store on a miss or a cache
// fault; the store is always authoritative.
type Handler struct {
	pipeline Processor
	orders   order.Repository
	cache    order.Cache
	started  time.Time
}

// New constructs a Handler. The uptime reported by /health counts from
// this call.
func New(pipeline Processor, orders order.Repository, cache order.Cache) *Handler {
	return &Handler{
		pipeline: pipeline,
		orders:   orders,
		cache:    cache,
		started:  time.Now(),
	}
}

// Register mounts the service routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/process", h.ProcessOrder)
	r.Get("/status/{orderID}", h.OrderStatus)
	r.Get("/health", h.Health)
}

type processRequest struct {
	OrderID int64 `json:"order_id"`
}

type processResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// outcomeMessages mirror the storefront-facing wording per terminal status.
var outcomeMessages = map[order.Status]string{
	order.StatusCompleted:     "Order processed successfully",
	order.StatusFraudReview:   "Order flagged for fraud review",
	order.StatusOutOfStock:    "One or more items are out of stock",
	order.StatusPaymentFailed: "Payment processing failed",
	order.StatusError:         "Order processing previously failed",
}

// ProcessOrder handles POST /process. Every business outcome is a 200
// with the status embedded; only infrastructure faults become 5xx.
func (h *Handler) ProcessOrder(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	status, err := h.pipeline.Process(r.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		zctx.From(r.Context()).Error("Order processing failed",
			zap.Int64("order_id", req.OrderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process order")
		return
	}

	msg, ok := outcomeMessages[status]
	if !ok {
		msg = "Order processed"
	}
	writeJSON(w, http.StatusOK, processResponse{
		OrderID: req.OrderID,
		Status:  status.String(),
		Message: msg,
	})
}

type statusResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	Source  string `json:"source"`
}

// OrderStatus handles GET /status/{orderID}. The response names whether
// the value came from the cache or the database; the value itself must
// agree whenever both are populated.
func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if status, err := h.cache.GetStatus(ctx, orderID); err == nil {
		writeJSON(w, http.StatusOK, statusResponse{
			OrderID: orderID,
			Status:  status.String(),
			Source:  "cache",
		})
		return
	} else if !errors.Is(err, order.ErrStatusNotCached) {
		// The cache is advisory: a fault degrades to a store read.
		zctx.From(ctx).Warn("Status cache read failed",
			zap.Int64("order_id", orderID), zap.Error(err))
	}

	o, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		zctx.From(ctx).Error("Status lookup failed",
			zap.Int64("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch order status")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		OrderID: orderID,
		Status:  o.Status.String(),
		Source:  "database",
	})
}

type healthResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
