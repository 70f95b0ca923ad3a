package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/poolwatch/internal/core/checkpoint"
	"github.com/vietddude/poolwatch/internal/core/config"
	"github.com/vietddude/poolwatch/internal/core/domain"
	"github.com/vietddude/poolwatch/internal/core/worker"
	"github.com/vietddude/poolwatch/internal/indexing/deferred"
	"github.com/vietddude/poolwatch/internal/indexing/fetcher"
	"github.com/vietddude/poolwatch/internal/indexing/handler"
	"github.com/vietddude/poolwatch/internal/indexing/health"
	"github.com/vietddude/poolwatch/internal/indexing/indexer"
	"github.com/vietddude/poolwatch/internal/indexing/parser"
	"github.com/vietddude/poolwatch/internal/indexing/recovery"
	"github.com/vietddude/poolwatch/internal/indexing/throttle"
	"github.com/vietddude/poolwatch/internal/infra/chain"
	"github.com/vietddude/poolwatch/internal/infra/chain/ton"
	redisclient "github.com/vietddude/poolwatch/internal/infra/redis"
	"github.com/vietddude/poolwatch/internal/protocols/stonfi"
	"github.com/vietddude/poolwatch/internal/service/conversion"
)

// Watcher is the main application struct that manages the indexer lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	storage      *Storage
	redisClient  *redisclient.Client
	fetcher      *fetcher.Fetcher
	pipeline     *indexer.Pipeline
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	started      bool
	done         chan struct{}
	log          *slog.Logger
}

// NewWatcher connects to the lite servers and builds the service.
func NewWatcher(ctx context.Context, cfg *config.AppConfig) (*Watcher, error) {
	client, err := ton.NewClient(ctx, cfg.TON)
	if err != nil {
		return nil, fmt.Errorf("failed to init ton client: %w", err)
	}
	return NewWatcherWithClient(ctx, cfg, client)
}

// NewWatcherWithClient builds the service on top of an existing chain client.
func NewWatcherWithClient(ctx context.Context, cfg *config.AppConfig, client chain.Client) (*Watcher, error) {
	network := string(cfg.TON.Network)

	// 1. Storage
	store, err := OpenStorage(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	// 2. Redis (optional)
	var redisClient *redisclient.Client
	failedRepo := store.Failed
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		failedRepo = redisclient.NewFailedBlockRepo(redisClient)
		slog.Info("Using Redis for failed blocks and stat cache")
	}

	// 3. Parse context seeded with known pools
	pc := parser.NewContext()
	if err := pc.Seed(ctx, store.Pools, cfg.Protocols); err != nil {
		closeAll(store, redisClient)
		return nil, fmt.Errorf("failed to load known pools: %w", err)
	}

	parsers, err := newParserRegistry(cfg.Protocols, client)
	if err != nil {
		closeAll(store, redisClient)
		return nil, err
	}

	handlers := handler.NewRegistry(
		handler.NewPoolCreatedHandler(store.Pools),
		handler.NewTradingStatHandler(store.Pools),
	)
	if redisClient != nil {
		handlers.Register(handler.NewStatsCacheHandler(redisclient.NewStatsCache(redisClient)))
	}

	// 4. Pipeline
	f := fetcher.New(client, fetcher.Config{
		Workers:       cfg.Ingest.Workers,
		PageSize:      cfg.Ingest.PageSize,
		RetryAttempts: cfg.Ingest.Retry.Attempts,
		RetryBase:     cfg.Ingest.Retry.Base,
	}, network)

	var tips *throttle.TipCache
	if cfg.Ingest.TipCacheTTL > 0 {
		tips = throttle.NewTipCache(client, cfg.Ingest.TipCacheTTL)
	}

	pipeline := indexer.NewPipeline(indexer.Config{
		Network:      network,
		Client:       client,
		Checkpoint:   checkpoint.New(),
		Fetcher:      f,
		Parsers:      parsers,
		ParseContext: pc,
		Handlers:     handlers,
		Executor:     deferred.NewExecutor(),
		Recorder:     recovery.NewRecorder(failedRepo, recovery.DefaultBackoff(), network),
		ScanInterval: cfg.Ingest.ScanInterval,
		Tips:         tips,
	})

	// 5. Health
	healthMon := health.NewMonitor(pipeline, failedRepo, health.DefaultThresholds())
	if store.Health != nil {
		healthMon.AddCheck("database", store.Health)
	}
	if redisClient != nil {
		healthMon.AddCheck("redis", redisClient.Health)
	}
	healthServer := health.NewServer(healthMon, pipeline, cfg.Server.Port)

	return &Watcher{
		cfg:          cfg,
		storage:      store,
		redisClient:  redisClient,
		fetcher:      f,
		pipeline:     pipeline,
		pruner:       worker.NewPruner(store.Pools, cfg.Retention.Period, cfg.Retention.Schedule),
		healthMon:    healthMon,
		healthServer: healthServer,
		done:         make(chan struct{}),
		log:          slog.Default().With("network", network),
	}, nil
}

// newParserRegistry registers a parser for each enabled protocol.
func newParserRegistry(protocols []domain.Protocol, client chain.Client) (*parser.Registry, error) {
	registry := parser.NewRegistry()
	conv := conversion.New()
	for _, p := range protocols {
		switch p {
		case domain.ProtocolStonfiV1:
			registry.Register(stonfi.NewParser(client, conv))
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProtocol, p)
		}
	}
	return registry, nil
}

// Start starts the watcher and all its components.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.pruner.Start(ctx); err != nil {
		return err
	}

	// Start Health Server
	go func() {
		if err := w.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	w.storage.StartMetricsCollector(ctx)

	w.log.Info("Starting indexer", "protocols", w.cfg.Protocols)
	w.started = true
	go func() {
		defer close(w.done)
		if err := w.pipeline.Start(ctx); err != nil {
			w.log.Error("Indexer failed", "error", err)
		}
	}()

	return nil
}

// Status returns the indexer status.
func (w *Watcher) Status() indexer.Status {
	return w.pipeline.GetStatus()
}

// Stop stops the watcher. An in-flight block is allowed to finish.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	_ = w.pipeline.Stop()
	if w.started {
		select {
		case <-w.done:
		case <-ctx.Done():
			w.log.Warn("Indexer did not stop in time")
		}
	}

	w.pruner.Stop()
	w.fetcher.Close()

	err := w.healthServer.Stop(ctx)
	closeAll(w.storage, w.redisClient)
	return err
}

func closeAll(store *Storage, redisClient *redisclient.Client) {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Warn("Failed to close Redis", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close storage", "error", err)
	}
}
