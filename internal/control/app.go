// Package control wires the service together and manages its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vietddude/buildforge/internal/aggregate"
	"github.com/vietddude/buildforge/internal/calc"
	"github.com/vietddude/buildforge/internal/core/config"
	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/core/worker"
	"github.com/vietddude/buildforge/internal/health"
	"github.com/vietddude/buildforge/internal/infra/cache"
	redisclient "github.com/vietddude/buildforge/internal/infra/redis"
	"github.com/vietddude/buildforge/internal/infra/resilience"
	"github.com/vietddude/buildforge/internal/infra/source"
	"github.com/vietddude/buildforge/internal/infra/storage"
	"github.com/vietddude/buildforge/internal/infra/storage/memory"
	"github.com/vietddude/buildforge/internal/infra/storage/postgres"
	"github.com/vietddude/buildforge/internal/recommend"
)

// App owns every long-lived component of the service.
type App struct {
	cfg          *config.AppConfig
	registry     *aggregate.Registry
	orchestrator *aggregate.Orchestrator
	service      *recommend.Service
	healthMon    *health.Monitor
	healthServer *health.Server
	pruner       *worker.Pruner
	db           *postgres.DB
	closers      []func() error
	log          *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, log: logger}

	// 1. Storage
	c, prunable, err := a.initCache()
	if err != nil {
		return nil, err
	}
	snapshots, err := a.initSnapshots()
	if err != nil {
		a.close()
		return nil, err
	}

	// 2. Sources
	a.registry = aggregate.NewRegistry(logger)
	queries := make([]domain.SourceQuery, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		client, err := a.newSource(sc)
		if err != nil {
			a.close()
			return nil, err
		}
		err = a.registry.Register(&aggregate.Entry{
			Client:  client,
			Breaker: resilience.NewBreaker(sc.Breaker),
			Limiter: resilience.NewLimiter(sc.Rate),
			Trust:   sc.Trust,
			TTL:     sc.TTL,
			Retry:   sc.Retry,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		queries = append(queries, domain.SourceQuery{SourceID: sc.ID, Kind: sc.Query, Params: sc.Params})
		logger.Info("Registered source", "source", sc.ID, "kind", sc.Kind, "type", sc.Type, "query", sc.Query)
	}

	// 3. Orchestration and calculation
	fallback := aggregate.NewFallback(c, snapshots, aggregate.WithFallbackLogger(logger))
	a.orchestrator = aggregate.New(cfg.Orchestrator, a.registry, c, fallback,
		aggregate.WithSnapshots(snapshots),
		aggregate.WithLogger(logger),
	)
	a.service = recommend.NewService(a.orchestrator, calc.New(nil, cfg.Calculator),
		recommend.WithDefaultQueries(queries),
		recommend.WithServiceLogger(logger),
	)

	// 4. Health and workers
	a.healthMon = health.NewMonitor(a.registry)
	a.healthServer = health.NewServer(a.healthMon, a.service, cfg.Server.Port, logger)
	a.pruner = worker.NewPruner(worker.PrunerConfig{
		Interval:          cfg.Cache.PruneInterval,
		SnapshotRetention: cfg.Cache.SnapshotRetention,
	}, prunable, snapshots, logger)

	return a, nil
}

func (a *App) initCache() (cache.Store, worker.CachePruner, error) {
	if a.cfg.Cache.Backend == config.CacheRedis {
		client, err := redisclient.NewClient(a.cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.log.Info("Using Redis cache")
		return cache.NewRedisCache(client, a.cfg.Cache.StaleRetention), nil, nil
	}

	mc := cache.NewMemoryCache(cache.WithStaleRetention(a.cfg.Cache.StaleRetention))
	a.log.Info("Using Memory cache")
	return mc, mc, nil
}

func (a *App) initSnapshots() (storage.SnapshotStore, error) {
	if a.cfg.Database.URL == "" {
		a.log.Info("Using Memory snapshot storage")
		return memory.NewSnapshotStore(), nil
	}

	db, err := postgres.NewDB(context.Background(), a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if err := postgres.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	a.log.Info("Using PostgreSQL snapshot storage")
	return postgres.NewSnapshotRepo(db), nil
}

func (a *App) newSource(sc config.SourceConfig) (source.Client, error) {
	if sc.Type == config.TypeFile {
		return source.NewStaticDBSource(source.FileConfig{
			ID:         sc.ID,
			Dir:        sc.Path,
			ResultPath: sc.ResultPath,
			Logger:     a.log,
		}), nil
	}

	httpCfg := source.HTTPConfig{
		ID:         sc.ID,
		BaseURL:    sc.URL,
		Endpoints:  sc.Endpoints,
		ResultPath: sc.ResultPath,
		HealthPath: sc.HealthPath,
		Headers:    sc.Headers,
		Timeout:    sc.Timeout,
		Logger:     a.log,
	}
	var s *source.HTTPSource
	switch sc.Kind {
	case config.KindMarket:
		s = source.NewMarketSource(httpCfg)
	case config.KindCommunity:
		s = source.NewCommunitySource(httpCfg)
	case config.KindStaticDB:
		s = source.NewHTTPSource(httpCfg)
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", sc.ID, sc.Kind)
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// Service returns the recommendation service.
func (a *App) Service() *recommend.Service {
	return a.service
}

// Registry returns the source registry.
func (a *App) Registry() *aggregate.Registry {
	return a.registry
}

// Start launches the HTTP server and background workers.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pruner.Start(ctx)
	}()

	go func() {
		a.log.Info("Starting HTTP server", "port", a.cfg.Server.Port)
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	a.log.Info("BuildForge started", "sources", a.registry.IDs())
	return nil
}

// Stop shuts the server down, waits for in-flight fetches and releases
// connections.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if err := a.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop http server: %w", err))
	}
	if a.cancel != nil {
		a.cancel()
	}

	drained := make(chan struct{})
	go func() {
		a.orchestrator.Drain()
		a.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("drain: %w", ctx.Err()))
	}

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
