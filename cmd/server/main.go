package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamekeys-be/internal/api"
	"gamekeys-be/internal/auth"
	"gamekeys-be/internal/checkout"
	"gamekeys-be/internal/config"
	"gamekeys-be/internal/coupon"
	"gamekeys-be/internal/fulfillment"
	"gamekeys-be/internal/idempotency"
	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/metrics"
	"gamekeys-be/internal/middleware"
	"gamekeys-be/internal/notification"
	"gamekeys-be/internal/order"
	"gamekeys-be/internal/payment"
	"gamekeys-be/internal/payment/webhook"
	"gamekeys-be/internal/store"
	"gamekeys-be/internal/tracking"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	loadConfigFunc  = config.LoadConfig
	openStoreFunc   = store.Open
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(context.Background()); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfigFunc()
	if err != nil {
		return err
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStoreFunc(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := newApp(ctx, cfg, backend, reg)
	defer a.close()

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", backend.Name),
			zap.String("payment_provider", cfg.PaymentProviderName()),
		)
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.L().Warn("close failed", zap.Error(err))
		}
	}
}

// newApp wires services on top of backend. Optional collaborators (AMQP,
// Redis) that fail to connect are logged and replaced by their fallbacks.
func newApp(ctx context.Context, cfg *config.Config, backend *store.Backend, reg *prometheus.Registry) *app {
	a := &app{}
	m := metrics.NewPipeline(reg)
	gw := newGateway(cfg)

	history := tracking.NewLog(backend.Tracking)
	engine := fulfillment.NewEngine(backend.Orders, backend.Inventory, history, m)

	notifier := notification.Notifier(notification.NewLogNotifier())
	if cfg.AMQPURL != "" {
		n, err := notification.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.L().Warn("amqp unavailable, notifications go to the log", zap.Error(err))
		} else {
			notifier = n
			a.closers = append(a.closers, n.Close)
		}
	}

	co := checkout.NewService(checkout.Params{
		Orders:          backend.Orders,
		Products:        backend.Products,
		Payments:        backend.Payments,
		Gateway:         gw,
		Fulfiller:       engine,
		History:         history,
		Notifier:        notifier,
		Metrics:         m,
		CancelOnFailure: cfg.CancelOnPaymentFailure,
	})

	wh := webhook.NewHandler(gw, backend.Payments, co, m)
	if cfg.RedisURL != "" {
		if g, closeFn, err := newGuard(ctx, cfg); err != nil {
			logger.L().Warn("redis unavailable, webhook dedupe uses the database only", zap.Error(err))
		} else {
			wh.WithGuard(g)
			a.closers = append(a.closers, closeFn)
		}
	}

	if cfg.JWTSecret == "" {
		logger.L().Warn("JWT_SECRET is not set, every bearer token will be rejected")
	}

	limiter := middleware.NewLimiter()
	go limiter.Cleanup(ctx, time.Minute)

	a.handler = api.NewRouter(api.Deps{
		Orders:      order.NewService(backend.Orders, backend.Products, backend.Inventory, history),
		Checkout:    co,
		Coupons:     coupon.NewService(backend.Coupons, backend.Products),
		Stock:       inventory.NewService(backend.Inventory),
		Fulfiller:   engine,
		Webhook:     wh,
		Auth:        middleware.NewAuth(auth.NewTokens(cfg.JWTSecret, 0), cfg.InternalSecretKey),
		Limiter:     limiter,
		Health:      backend,
		StorageName: backend.Name,
		Gatherer:    reg,
	})
	return a
}

func newGateway(cfg *config.Config) payment.Gateway {
	switch cfg.PaymentProviderName() {
	case config.ProviderXendit:
		return payment.NewXenditGateway(payment.XenditConfig{
			APIKey:        cfg.XenditSecretKey,
			CallbackToken: cfg.XenditCallbackToken,
			BaseURL:       cfg.XenditBaseURL,
			SuccessURL:    cfg.SuccessURL,
			FailureURL:    cfg.FailureURL,
			Timeout:       cfg.ProviderTimeout,
		})
	default:
		if cfg.IsProduction() {
			logger.L().Warn("mock payment gateway enabled in production")
		}
		return payment.NewMockGateway()
	}
}

func newGuard(ctx context.Context, cfg *config.Config) (*idempotency.Guard, func() error, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rs, err := idempotency.NewRedisStore(dialCtx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	g, err := idempotency.NewGuard(rs, cfg.WebhookDedupeTTL, "webhook")
	if err != nil {
		_ = rs.Close()
		return nil, nil, err
	}
	return g, rs.Close, nil
}
