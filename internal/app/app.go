// Package app wires the service together: configuration, storage, the
// fulfillment pipeline, HTTP surface, probes, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/shopnow/order-service/internal/handler"
	"github.com/shopnow/order-service/internal/pipeline"
	"github.com/shopnow/order-service/internal/storage/postgres"
	"github.com/shopnow/order-service/internal/storage/redis"
	"github.com/shopnow/order-service/pkg/health"
	"github.com/shopnow/order-service/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis status/verdict cache.
	cache, err := redis.New(ctx, cfg.RedisURL,
		redis.WithTTL(cfg.Cache.TTL),
		redis.WithOpTimeout(cfg.Cache.OpTimeout),
	)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = cache.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("redis", 2*time.Second, cache.Ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)

	// Pipeline components.
	fraudChecker := pipeline.NewFraudChecker(cache, pipeline.FraudConfig{
		MinLatency:     cfg.Fraud.MinLatency,
		MaxLatency:     cfg.Fraud.MaxLatency,
		SuspiciousRate: cfg.Fraud.SuspiciousRate,
	})
	inventoryChecker := pipeline.NewInventoryChecker(orderRepo, productRepo)
	paymentProc := pipeline.NewPaymentProcessor(paymentRepo, pipeline.PaymentConfig{
		MinLatency:  cfg.Payment.MinLatency,
		MaxLatency:  cfg.Payment.MaxLatency,
		DeclineRate: cfg.Payment.DeclineRate,
		Method:      cfg.Payment.Method,
	})
	statusMgr := pipeline.NewStatusManager(orderRepo, cache)

	pipe := pipeline.New(orderRepo, fraudChecker, inventoryChecker, paymentProc, statusMgr,
		pipeline.Config{CheckTimeout: cfg.Pipeline.CheckTimeout})

	go watchReconciliation(ctx, orderRepo, cfg.Pipeline.ReconcileInterval)

	// HTTP surface: service routes plus probe endpoints.
	h := handler.New(pipe, orderRepo, cache)
	router := chi.NewRouter()
	h.Register(router)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(router, handler.ServiceName,
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// reconciliationLister is the slice of the order repository the watcher needs.
type reconciliationLister interface {
	ListAwaitingReconciliation(ctx context.Context) ([]int64, error)
}

// watchReconciliation periodically surfaces orders that hold a completed
// payment but never reached the completed status. The window between the
// payment row and the status write is small, so an order appearing here
// means the final status write was lost and an operator has to step in.
func watchReconciliation(ctx context.Context, orders reconciliationLister, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := orders.ListAwaitingReconciliation(ctx)
			if err != nil {
				zctx.From(ctx).Warn("Reconciliation scan failed", zap.Error(err))
				continue
			}
			if len(ids) > 0 {
				zctx.From(ctx).Error("Orders captured but not completed",
					zap.Int64s("order_ids", ids))
			}
		}
	}
}
