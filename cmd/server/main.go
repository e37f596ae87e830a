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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"classlog/internal/platform/config"
	"classlog/internal/platform/health"
	"classlog/internal/platform/logger"
	platformmetrics "classlog/internal/platform/metrics"
	"classlog/internal/platform/postgres"
	redisclient "classlog/internal/platform/redis"
	rlmetrics "classlog/internal/ratelimit/metrics"
	rlservice "classlog/internal/ratelimit/service"
	"classlog/internal/ratelimit/store/window"
	"classlog/internal/verification/handler"
	vmetrics "classlog/internal/verification/metrics"
	"classlog/internal/verification/orchestrator"
	"classlog/internal/verification/service"
	"classlog/internal/verification/store"
	"classlog/internal/verification/vision"
	"classlog/pkg/platform/audit"
	"classlog/pkg/platform/audit/publishers/kafka"
	"classlog/pkg/platform/audit/worker"
	"classlog/pkg/platform/circuit"
	"classlog/pkg/platform/middleware/request"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	httpMetrics := platformmetrics.New()
	verificationMetrics := vmetrics.New()
	throttleMetrics := rlmetrics.New()

	var (
		recorder service.Recorder
		checks   []health.Check
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		recorder = store.NewPostgres(db)
		checks = append(checks, health.Check{Name: "postgres", Ping: db.PingContext})
	} else {
		log.Warn("DATABASE_URL not set, verdicts are kept in memory")
		recorder = store.NewMemory()
		checks = append(checks, health.Check{Name: "postgres"})
	}

	inMemory := window.NewInMemoryStore()
	var (
		windows  rlservice.Store = inMemory
		fallback *window.FallbackStore
	)
	redis, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redis != nil {
		defer redis.Close()
		fallback = window.NewFallbackStore(window.NewRedisStore(redis), inMemory, circuit.New("redis-throttle"), log)
		windows = fallback
		checks = append(checks, health.Check{Name: "redis", Ping: redis.Health})
	} else {
		checks = append(checks, health.Check{Name: "redis"})
	}

	// LogAudit always writes the structured log line; a broker only adds the
	// Kafka copy.
	var (
		auditPublisher audit.Publisher
		auditWorker    *worker.Worker
	)
	if len(cfg.Audit.Brokers) > 0 {
		producer, err := kafka.New(cfg.Audit.Brokers, cfg.Audit.Topic)
		if err != nil {
			return err
		}
		defer producer.Close()
		auditWorker = worker.NewWorker(producer, worker.WithLogger(log))
		auditPublisher = auditWorker
	}

	// Left as a nil interface when unconfigured so the orchestrator reports
	// analysis_unavailable instead of calling a nil client.
	var analyzer orchestrator.Analyzer
	client, err := vision.New(vision.Config{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Model:   cfg.Vision.Model,
		Timeout: cfg.Vision.Timeout,
	}, vision.WithLogger(log), vision.WithMetrics(verificationMetrics))
	switch {
	case errors.Is(err, vision.ErrNotConfigured):
		log.Warn("VISION_API_KEY not set, verifications will report analysis_unavailable")
	case err != nil:
		return err
	default:
		analyzer = client
	}
	runner := orchestrator.New(analyzer,
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(verificationMetrics),
	)

	throttle, err := rlservice.New(windows,
		rlservice.WithLogger(log),
		rlservice.WithAuditPublisher(auditPublisher),
		rlservice.WithClasses(cfg.RateLimit.Classes),
		rlservice.WithMetrics(throttleMetrics),
	)
	if err != nil {
		return err
	}

	verifier, err := service.New(runner, throttle, recorder,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(verificationMetrics),
	)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(request.RequestID, request.RequestTime, request.Caller, middleware.Recoverer, httpMetrics.Middleware)
	health.New(time.Now(), checks...).Register(router)
	handler.New(verifier, log).Register(router)
	router.Handle("/metrics", platformmetrics.Handler())

	srv := newHTTPServer(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if auditWorker != nil {
		g.Go(func() error {
			if err := auditWorker.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		sweepWindows(gctx, inMemory, fallback, throttleMetrics, cfg.RateLimit.SweepInterval)
		return nil
	})
	g.Go(func() error {
		log.Info("starting classlog verification service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// sweepWindows drops expired in-memory throttle windows on a ticker and
// reports whether the shared store is being bypassed. fallback is nil when
// redis is not configured.
func sweepWindows(ctx context.Context, s *window.InMemoryStore, fallback *window.FallbackStore, m *rlmetrics.Metrics, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, remaining := s.Sweep(now)
			m.AddSwept(removed)
			m.SetActiveWindows(remaining)
			if fallback != nil {
				m.SetStoreDegraded(fallback.Degraded())
			}
		}
	}
}

// newHTTPServer leaves WriteTimeout room for a full verification run, which
// waits on every photo analysis before responding.
func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
