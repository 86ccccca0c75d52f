// Package api exposes the scorecard engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	service "github.com/okian/scorecard/internal/app"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/pkg/logger"
)

const (
	defaultMaxSeriesLimit      = 24
	defaultMaxLeaderboardLimit = 100
	defaultMaxBodyBytes        = 10 << 20
	defaultRequestTimeout      = 30 * time.Second
)

// ScorecardDependencies covers single-record writes and agent reads.
type ScorecardDependencies interface {
	SubmitScorecard(ctx context.Context, req service.SubmitRequest) (model.ScorecardRecord, error)
	AgentMetrics(ctx context.Context, agentID string, limit int) (model.AgentMetrics, error)
	Agents(ctx context.Context) ([]model.AgentSummary, error)
	Agent(ctx context.Context, agentID string) (model.AgentSummary, error)
	SaveAgent(ctx context.Context, a model.Agent) (model.Agent, error)
}

// RollupDependencies covers aggregate reads.
type RollupDependencies interface {
	TeamRollup(ctx context.Context, leaderID string, p model.Period) (model.TeamRollup, error)
	ManagerRollup(ctx context.Context, managerID string, p model.Period) (model.ManagerRollup, error)
	Leaderboard(ctx context.Context, p model.Period, limit int) ([]model.RankedAgent, error)
}

// BulkDependencies covers imports and exports.
type BulkDependencies interface {
	Import(ctx context.Context, data []byte, format, actor string) (model.ImportResult, error)
	SubmitImport(ctx context.Context, data []byte, format, actor string) (model.ImportJob, bool, error)
	Job(ctx context.Context, id string) (model.ImportJob, error)
	Export(ctx context.Context, req service.ExportRequest) (service.ExportFile, error)
}

// StatsProvider reports service statistics.
type StatsProvider interface {
	Stats(ctx context.Context) map[string]any
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ScorecardDependencies
	RollupDependencies
	BulkDependencies
	StatsProvider
	HealthChecker
}

var _ Dependencies = (*service.Service)(nil)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAllowedOrigins configures CORS.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithLimits caps the series and leaderboard sizes a client may request.
func WithLimits(maxSeries, maxLeaderboard int) Option {
	return func(s *Server) {
		if maxSeries > 0 {
			s.maxSeriesLimit = maxSeries
		}
		if maxLeaderboard > 0 {
			s.maxLeaderboardLimit = maxLeaderboard
		}
	}
}

// WithMaxBodyBytes caps how much of an upload is read.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithClock sets the clock used for the default period.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger
	now      func() time.Time

	allowedOrigins      []string
	maxSeriesLimit      int
	maxLeaderboardLimit int
	maxBodyBytes        int64
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:                deps,
		validate:            validator.New(validator.WithRequiredStructEnabled()),
		logger:              logger.Nop(),
		now:                 time.Now,
		allowedOrigins:      []string{"*"},
		maxSeriesLimit:      defaultMaxSeriesLimit,
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
		maxBodyBytes:        defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches every route to r.
func (s *Server) Register(r chi.Router) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(s.allowedOrigins))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metricsHandler())
	r.Get("/stats", s.handleStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ActorMiddleware)
		r.Use(chimiddleware.Timeout(defaultRequestTimeout))

		r.Get("/agents", s.handleListAgents)
		r.Post("/agents", s.handleSaveAgent)
		r.Get("/agents/{agentID}", s.handleGetAgent)
		r.Get("/agents/{agentID}/metrics", s.handleGetMetrics)
		r.Put("/agents/{agentID}/scorecards/{year}/{month}", s.handlePutScorecard)

		r.Get("/teams/{leaderID}/rollup", s.handleTeamRollup)
		r.Get("/managers/{managerID}/rollup", s.handleManagerRollup)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Post("/imports", s.handlePostImport)
		r.Get("/imports/{jobID}", s.handleGetImport)
		r.Get("/exports", s.handleGetExport)
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
