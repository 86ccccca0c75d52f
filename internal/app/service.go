// Package service wires the scorecard engine together: the store behind a
// read-through cache, the scoring calculator, the import pipeline and the
// async import queue with its worker pool. It implements the dependencies
// required by the HTTP API and the CLI.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/scorecard/internal/adapters/cache"
	"github.com/okian/scorecard/internal/adapters/mq/queue"
	"github.com/okian/scorecard/internal/adapters/mq/worker"
	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/internal/domain/bulk"
	"github.com/okian/scorecard/internal/domain/dedupe"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/scoring"
	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

const (
	defaultQueueSize           = 64
	defaultDedupeSize          = 1024
	defaultJobHistory          = 1024
	defaultMaxImportBytes      = 10 << 20
	defaultMaxImportRows       = 10_000
	defaultSeriesLimit         = 6
	defaultMaxSeriesLimit      = 24
	defaultMaxExportRecords    = 50_000
	defaultLeaderboardLimit    = 10
	defaultMaxLeaderboardLimit = 100
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache replaces the default read-through cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCalculator sets the calculator providing default weights.
func WithCalculator(c *scoring.Calculator) Option {
	return func(s *Service) {
		if c != nil {
			s.calc = c
		}
	}
}

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets how many async imports may wait.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many pending submission fingerprints are kept.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobHistory sets how many import jobs stay queryable.
func WithJobHistory(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.jobHistory = n
		}
	}
}

// WithImportLimits bounds a single uploaded file.
func WithImportLimits(maxBytes int64, maxRows int) Option {
	return func(s *Service) {
		if maxBytes > 0 {
			s.maxImportBytes = maxBytes
		}
		if maxRows > 0 {
			s.maxImportRows = maxRows
		}
	}
}

// WithSeriesLimits sets the default and maximum metrics series length.
func WithSeriesLimits(def, maxLimit int) Option {
	return func(s *Service) {
		if def > 0 {
			s.seriesLimit = def
		}
		if maxLimit > 0 {
			s.maxSeriesLimit = maxLimit
		}
	}
}

// WithMaxExportRecords caps one export.
func WithMaxExportRecords(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxExportRecords = n
		}
	}
}

// WithMaxLeaderboardLimit caps a leaderboard page.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// Service implements the API dependencies for the scorecard engine.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	cache    *cache.Cache
	calc     *scoring.Calculator
	pipeline *bulk.Pipeline
	deduper  dedupe.Deduper
	jobQueue *queue.InMemoryQueue
	pool     *worker.Pool
	jobs     *lru.Cache[string, model.ImportJob]
	jobsMu   sync.Mutex

	workerCount         int
	queueSize           int
	dedupeSize          int
	jobHistory          int
	maxImportBytes      int64
	maxImportRows       int
	seriesLimit         int
	maxSeriesLimit      int
	maxExportRecords    int
	maxLeaderboardLimit int

	started   bool
	startedAt time.Time
	now       func() time.Time

	logger logger.Logger
}

// New constructs a Service over store. Call Start before submitting async imports.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:               store,
		workerCount:         runtime.NumCPU(),
		queueSize:           defaultQueueSize,
		dedupeSize:          defaultDedupeSize,
		jobHistory:          defaultJobHistory,
		maxImportBytes:      defaultMaxImportBytes,
		maxImportRows:       defaultMaxImportRows,
		seriesLimit:         defaultSeriesLimit,
		maxSeriesLimit:      defaultMaxSeriesLimit,
		maxExportRecords:    defaultMaxExportRecords,
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
		now:                 time.Now,
		logger:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seriesLimit > s.maxSeriesLimit {
		s.seriesLimit = s.maxSeriesLimit
	}
	if s.cache == nil {
		s.cache = cache.New(cache.WithLogger(s.logger.Named("cache")))
	}
	if s.calc == nil {
		s.calc = scoring.NewCalculator()
	}

	s.pipeline = bulk.NewPipeline(s.store, s.write,
		bulk.WithMaxRows(s.maxImportRows),
		bulk.WithCalculator(s.calc),
		bulk.WithNotFound(repository.ErrNotFound),
		bulk.WithLogger(s.logger.Named("import")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.jobs, _ = lru.New[string, model.ImportJob](s.jobHistory)
	s.pool = worker.NewPool(s.workerCount, s.jobQueue, worker.ProcessorFunc(s.Process),
		worker.WithPoolLogger(s.logger.Named("worker")))
	return s
}

// Start launches the import workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.pool.Start(ctx)
	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "scorecard service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop drains queued imports and stops the workers. The store is left open
// for its owner to close.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scorecard service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "scorecard service stopped")
	return err
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started, startedAt := s.started, s.startedAt
	s.mu.RUnlock()

	stats := map[string]any{
		"started":        started,
		"workerCount":    s.pool.Size(),
		"queueLength":    s.jobQueue.Len(),
		"queueCapacity":  s.jobQueue.Cap(),
		"pendingImports": s.deduper.Size(),
		"trackedJobs":    s.jobs.Len(),
		"cacheEntries":   s.cache.Len(),
	}
	if started {
		stats["uptimeSeconds"] = int(s.now().Sub(startedAt).Seconds())
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["scorecards"] = n
	} else {
		s.logger.Warn(ctx, "stats: count scorecards", logger.Error(err))
	}
	if agents, err := s.store.ListAgents(ctx); err == nil {
		stats["agents"] = len(agents)
	}

	metrics.UpdateQueueSize(s.jobQueue.Len())
	metrics.UpdateCacheEntries(s.cache.Len())
	return stats
}
