// Command monitor polls the configured traffic feeds, deduplicates incidents
// and notifies on new ones. It also serves the operator board API.
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

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/traffic-incident-monitor/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/traffic-incident-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/notify"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/traffic-incident-monitor/internal/adapter/redis"
	"github.com/couchcryptid/traffic-incident-monitor/internal/config"
	"github.com/couchcryptid/traffic-incident-monitor/internal/dashboard"
	"github.com/couchcryptid/traffic-incident-monitor/internal/dedup"
	"github.com/couchcryptid/traffic-incident-monitor/internal/observability"
	"github.com/couchcryptid/traffic-incident-monitor/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hc := feed.NewHTTPClient(cfg.FetchTimeout)
	adapters, err := feed.NewAll(cfg.Sources, feed.Options{HTTPClient: hc, GovAccountKey: cfg.GovAccountKey})
	if err != nil {
		logger.Error("failed to build feed adapters", "error", err)
		os.Exit(1)
	}
	for _, a := range adapters {
		logger.Info("feed source configured", "source", a.Source().ID, "kind", a.Source().Kind)
	}

	store, storeCheck, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dedup store", "policy", cfg.DedupPolicy, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	notifier := notify.NewClient(cfg.NotifyURL, cfg.NotifyAPIKey, cfg.FrontendURL, cfg.NotifyTimeout, logger)

	opts := pipeline.Options{Interval: cfg.PollInterval, Concurrency: cfg.FetchConcurrency}
	var decisions *kafkaadapter.DecisionWriter
	if cfg.DecisionStreamEnabled() {
		decisions = kafkaadapter.NewDecisionWriter(cfg, metrics, logger)
		opts.Recorder = decisions
		logger.Info("decision stream enabled", "topic", cfg.KafkaDecisionsTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(adapters, store, notifier, logger, metrics, opts)

	board, err := dashboard.New(adapters, cfg.DashboardSource, nil, logger, metrics)
	if err != nil {
		logger.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	traffic := feed.NewCachedTrafficClient(feed.NewTrafficClient(hc), cfg.TrafficCacheTTL, nil)
	cameras := feed.NewCachedCameraClient(feed.NewCameraClient(hc, cfg.CamerasURL, cfg.GovAccountKey), cfg.CameraCacheTTL, nil)
	api := httpadapter.NewAPI(adapters, traffic, board, notifier, cfg.NotifyAPIKey, logger).WithCameras(cameras)
	srv := httpadapter.NewServer(cfg.HTTPAddr, readiness{p, storeCheck}, api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start dashboard auto-refresh.
	go board.Run(ctx, cfg.DashboardRefreshInterval)

	// Start poller.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("poller did not stop before shutdown timeout")
	}
	if decisions != nil {
		if err := decisions.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// newStore builds the dedup store for the configured policy. The returned
// check reports backend health and the cleanup releases its connections.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dedup.Store, checkFunc, func(), error) {
	noop := func() {}
	if cfg.DedupPolicy != config.PolicyDurable {
		logger.Info("dedup policy transient")
		return dedup.NewTransient(), nil, noop, nil
	}

	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, noop, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		logger.Info("dedup policy durable", "backend", cfg.LedgerBackend)
		return dedup.NewDurable(postgres.NewLedger(pool)), pool.Ping, pool.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ledger := redisadapter.NewLedger(client)
		if err := ledger.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("dedup policy durable", "backend", cfg.LedgerBackend)
		return dedup.NewDurable(ledger), ledger.Ping, func() { _ = client.Close() }, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

type checkFunc func(ctx context.Context) error

// readiness requires a completed poll round and, when present, a reachable
// ledger backend.
type readiness struct {
	poller sharedobs.ReadinessChecker
	ledger checkFunc
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	if err := r.poller.CheckReadiness(ctx); err != nil {
		return err
	}
	if r.ledger != nil {
		if err := r.ledger(ctx); err != nil {
			return fmt.Errorf("ledger unreachable: %w", err)
		}
	}
	return nil
}
