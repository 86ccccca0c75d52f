package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/scorecard/internal/adapters/cache"
	"github.com/okian/scorecard/internal/adapters/http/api"
	"github.com/okian/scorecard/internal/adapters/http/site"
	"github.com/okian/scorecard/internal/adapters/http/swagger"
	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/internal/adapters/repository/postgres"
	service "github.com/okian/scorecard/internal/app"
	"github.com/okian/scorecard/internal/config"
	"github.com/okian/scorecard/internal/domain/scoring"
	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 30 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "scorecard server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains the import queue and closes the store.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	registerRuntimeCollectors()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "close store", logger.Error(err))
		}
	}()

	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		return errors.Wrap(err, "start service")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "service stop failed", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// openStore selects the scorecard store named by the configuration.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn(ctx, "using the in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	case config.StorePostgres:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return nil, errors.Wrap(err, "migrate")
			}
		}
		db, err := postgres.New(ctx, cfg.DatabaseURL,
			postgres.WithMaxConns(cfg.DatabaseMaxConns),
			postgres.WithLogger(log.Named("postgres")),
		)
		if err != nil {
			return nil, errors.Wrap(err, "connect postgres")
		}
		return db, nil
	default:
		return nil, errors.Newf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newService(cfg *config.Config, store repository.Store, log logger.Logger) *service.Service {
	ttl := time.Duration(cfg.CacheTTLMillis) * time.Millisecond
	return service.New(store,
		service.WithLogger(log.Named("service")),
		service.WithCache(cache.New(
			cache.WithTTL(ttl),
			cache.WithMaxTTL(ttl),
			cache.WithSize(cfg.CacheSize),
			cache.WithLogger(log.Named("cache")),
		)),
		service.WithCalculator(scoring.NewCalculator(scoring.WithDefaultWeights(cfg.DefaultWeights))),
		service.WithWorkerCount(cfg.ImportWorkerCount),
		service.WithQueueSize(cfg.ImportQueueSize),
		service.WithDedupeSize(cfg.ImportDedupeSize),
		service.WithImportLimits(cfg.MaxImportBytes, cfg.MaxImportRows),
		service.WithSeriesLimits(cfg.DefaultSeriesLimit, cfg.MaxSeriesLimit),
		service.WithMaxExportRecords(cfg.MaxExportRecords),
		service.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	)
}

// newRouter registers the API first; chi requires middleware before routes.
func newRouter(cfg *config.Config, svc *service.Service, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	api.NewServer(svc,
		api.WithLogger(log.Named("api")),
		api.WithAllowedOrigins(cfg.AllowedOrigins),
		api.WithLimits(cfg.MaxSeriesLimit, cfg.MaxLeaderboardLimit),
		api.WithMaxBodyBytes(cfg.MaxImportBytes),
	).Register(r)
	swagger.Register(r)
	site.Register(r)
	return r
}

// registerRuntimeCollectors exposes Go runtime and process metrics on the
// service registry. Repeated calls are ignored.
func registerRuntimeCollectors() {
	reg := metrics.GetRegistry()
	_ = reg.Register(collectors.NewGoCollector())
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// startServiceMetricsUpdater refreshes the queue and cache gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Stats(ctx)
		}
	}
}
