package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	lhttp "github.com/Strob0t/licensed/internal/adapter/http"
	"github.com/Strob0t/licensed/internal/adapter/nats"
	"github.com/Strob0t/licensed/internal/adapter/natskv"
	"github.com/Strob0t/licensed/internal/adapter/otel"
	"github.com/Strob0t/licensed/internal/adapter/postgres"
	"github.com/Strob0t/licensed/internal/adapter/redis"
	"github.com/Strob0t/licensed/internal/adapter/ristretto"
	"github.com/Strob0t/licensed/internal/adapter/tiered"
	"github.com/Strob0t/licensed/internal/adapter/ws"
	"github.com/Strob0t/licensed/internal/config"
	"github.com/Strob0t/licensed/internal/logger"
	"github.com/Strob0t/licensed/internal/middleware"
	"github.com/Strob0t/licensed/internal/port/cache"
	"github.com/Strob0t/licensed/internal/port/messagequeue"
	"github.com/Strob0t/licensed/internal/resilience"
	"github.com/Strob0t/licensed/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		err = runAdmin(os.Args[2:])
	} else {
		err = run(os.Args[1:])
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"config_file", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"nats_enabled", cfg.NATS.Enabled,
		"auth_enabled", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	providers, err := otel.Setup(ctx, cfg.OTel, cfg.Logging.Service, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			log.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	store := postgres.NewStore(pool)
	hub := ws.NewHub(cfg.Server.CORSOrigin, log)
	defer hub.Close()

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breaker.OnStateChange(func(from, to string) {
		log.Warn("event breaker state changed", "from", from, "to", to)
	})

	var (
		queue       messagequeue.Queue
		idempotency func(http.Handler) http.Handler
		l2          cache.Cache
		health      = &lhttp.Health{DB: store}
	)

	if cfg.NATS.Enabled {
		q, err := nats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := q.Drain(); err != nil {
				log.Warn("nats drain", "error", err)
			}
		}()
		queue = q
		health.Queue, health.Breaker = q, breaker

		kv, err := q.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("idempotency bucket: %w", err)
		}
		idempotency = middleware.Idempotency(kv)

		for _, subject := range messagequeue.StreamSubjects {
			cancel, err := q.Subscribe(ctx, subject, hub.Relay())
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", subject, err)
			}
			defer cancel()
		}

		if cfg.Cache.L2Backend == "nats" {
			c, err := natskv.Open(ctx, q.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
			if err != nil {
				return fmt.Errorf("l2 cache: %w", err)
			}
			l2 = c
		}
	} else {
		log.Warn("nats disabled: events go to the local websocket feed only, idempotency replay off")
	}

	switch cfg.Cache.L2Backend {
	case "redis":
		client, err := redis.Dial(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = client.Close() }()
		l2 = redis.New(client, cfg.Cache.L2Bucket)
		log.Info("redis l2 cache connected", "addr", cfg.Cache.RedisAddr)
	case "nats":
		if l2 == nil {
			log.Warn("nats l2 cache requested with nats disabled; using l1 only")
		}
	}

	l1, err := ristretto.NewMB(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	authCache := tiered.New(l1, l2, cfg.Auth.CacheTTL)

	// --- Services ---

	events := service.NewEventPublisher(queue, breaker).WithLocal(hub)
	authSvc := service.NewAuthService(store, cfg.Auth, authCache)
	if !authSvc.Enabled() {
		log.Warn("API key authentication disabled; every request runs as the dev principal")
	}

	handlers := &lhttp.Handlers{
		Licenses:   service.NewLicenseService(store, cfg.License, events, metrics),
		Ledger:     service.NewLedger(store, events, metrics),
		Validation: service.NewValidationService(store, metrics),
		Catalog:    service.NewCatalogService(store),
		Auth:       authSvc,
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	router := lhttp.NewRouter(lhttp.RouterConfig{
		CORSOrigin:     cfg.Server.CORSOrigin,
		RequestTimeout: cfg.Server.RequestTimeout,
		Tracing:        otel.HTTPMiddleware(cfg.Logging.Service),
		RateLimit:      limiter.Handler,
		Auth:           middleware.Auth(authSvc),
		Idempotency:    idempotency,
		Health:         health,
		Metrics:        providers.MetricsHandler,
		WS:             hub.HandleWS,
	}, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
