package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/jcmexdev/storefront/internal/pkg/cache"
	"github.com/jcmexdev/storefront/internal/pkg/config"
	"github.com/jcmexdev/storefront/internal/pkg/interceptors"
	"github.com/jcmexdev/storefront/internal/pkg/kafka"
	"github.com/jcmexdev/storefront/internal/pkg/metrics"
	"github.com/jcmexdev/storefront/internal/pkg/outbox"
	"github.com/jcmexdev/storefront/internal/pkg/telemetry"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/core/service"
	"github.com/jcmexdev/storefront/internal/storefront/infra/adapters/fakepay"
	"github.com/jcmexdev/storefront/internal/storefront/infra/adapters/identity"
	"github.com/jcmexdev/storefront/internal/storefront/infra/adapters/memory"
	"github.com/jcmexdev/storefront/internal/storefront/infra/adapters/postgres"
	"github.com/jcmexdev/storefront/internal/storefront/infra/adapters/stripe"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/middlewares"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("storefront stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, ready, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var obs service.Observers
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs.Metrics = metrics.NewPipeline(reg)
	serverMetrics := metrics.NewServerMetrics(reg)

	if cfg.PaymentLogPath != "" {
		logRepo, err := sqlite.Open(cfg.PaymentLogPath)
		if err != nil {
			return err
		}
		defer logRepo.Close()
		obs.PaymentLog = logRepo
		slog.Info("payment log enabled", "path", cfg.PaymentLogPath)
	}

	var sharedCache ports.Cache
	if cfg.RedisAddr != "" {
		sharedCache = cache.NewRedisCache(cfg.RedisAddr, cfg.ServiceName)
		defer cache.Close(sharedCache)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := cache.Ping(pingCtx, sharedCache); err != nil {
			slog.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
	}

	var (
		gateway   ports.PaymentGateway
		verifier  ports.PaymentEventVerifier
		sigHeader string
	)
	if cfg.MockPayments {
		gateway = fakepay.NewGateway()
		verifier = fakepay.NewVerifier(cfg.StripeWebhookSecret)
		sigHeader = fakepay.SignatureHeader
		slog.Warn("mock payments enabled")
	} else {
		gateway = stripe.NewGateway(cfg.StripeSecretKey, cfg.Currency)
		verifier = stripe.NewVerifier(cfg.StripeWebhookSecret)
		sigHeader = stripe.SignatureHeader
	}
	identityVerifier, err := identity.NewVerifier(cfg.IdentityWebhookSecret)
	if err != nil {
		return err
	}

	users := service.NewUserService(store, obs)
	handler := &httpx.Handler{
		Cart:                   service.NewCartService(store),
		Checkout:               service.NewCheckoutService(store, gateway, obs),
		Orders:                 service.NewOrderService(store, obs.PaymentLog),
		Reconciler:             service.NewReconciler(store, sharedCache, obs),
		Users:                  users,
		PaymentEvents:          verifier,
		IdentityEvents:         identityVerifier,
		PaymentSignatureHeader: sigHeader,
		Cache:                  sharedCache,
	}
	router := httpx.NewRouter(handler, httpx.RouterConfig{
		JWTSecret:       []byte(cfg.JWTSecret),
		CheckoutLimiter: middlewares.NewUserRateLimiter(cfg.CheckoutRateLimit, cfg.CheckoutRateBurst),
		Metrics:         serverMetrics,
		MetricsHandler:  metrics.Handler(reg),
		Ready:           func(r *http.Request) error { return ready(r.Context()) },
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryServerInterceptor(),
			interceptors.LoggingServerInterceptor(),
		),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	if cfg.SweepInterval > 0 {
		sweeper := service.NewOrderSweeper(store, cfg.PaymentTimeout, obs)
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Run(workersCtx, cfg.SweepInterval)
		}()
		slog.Info("order sweeper running", "interval", cfg.SweepInterval.String(), "timeout", cfg.PaymentTimeout.String())
	}

	if cfg.KafkaEnabled() {
		publisher := kafka.NewPublisher(kafka.NewClient(cfg.KafkaBrokers), cfg.KafkaTopic)
		defer publisher.Close()
		relay := outbox.NewRelay(store, publisher, 100, obs.Metrics)
		workers.Add(1)
		go func() {
			defer workers.Done()
			relay.Run(workersCtx, cfg.OutboxPollInterval)
		}()
		slog.Info("outbox relay running", "topic", cfg.KafkaTopic)
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("storefront HTTP running", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		slog.Info("storefront ops gRPC running", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case runErr = <-errCh:
		slog.Error("server failed", "error", runErr)
	}

	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	stopWorkers()
	workers.Wait()
	return runErr
}

// openStore picks Postgres when a DSN is configured and the seeded
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config) (ports.Store, func(context.Context) error, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store with demo catalog")
		return memory.NewSeededStore(memory.DemoCatalog()...), func(context.Context) error { return nil }, func() {}, nil
	}

	pg, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, nil, err
	}
	if cfg.SeedCatalog {
		for _, p := range memory.DemoCatalog() {
			if err := pg.UpsertProduct(ctx, p); err != nil {
				pg.Close()
				return nil, nil, nil, err
			}
		}
		slog.Info("demo catalog seeded")
	}
	return pg, pg.Ping, pg.Close, nil
}
