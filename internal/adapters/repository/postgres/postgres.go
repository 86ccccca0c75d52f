// Package postgres implements the repository contracts on PostgreSQL with
// pgx, squirrel and goose.
package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/pkg/logger"
)

const (
	tableAgents     = "agents"
	tableScorecards = "scorecards"

	defaultRetryAttempts = 3
	defaultRetryDelay    = 20 * time.Millisecond
	pingTimeout          = 10 * time.Second
)

// pgxPool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it too.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Option applies a configuration option to the Database.
type Option func(*Database)

// WithMaxConns caps the pool size. Only applies to New.
func WithMaxConns(n int32) Option {
	return func(db *Database) {
		if n > 0 {
			db.maxConns = n
		}
	}
}

// WithRetry sets how often a write is attempted on serialization failures and deadlocks.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(db *Database) {
		if attempts > 0 {
			db.retryAttempts = attempts
		}
		if delay > 0 {
			db.retryDelay = delay
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(db *Database) {
		if now != nil {
			db.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(db *Database) {
		if l != nil {
			db.log = l
		}
	}
}

// Database is a repository.Store backed by PostgreSQL.
type Database struct {
	pool          pgxPool
	maxConns      int32
	retryAttempts uint
	retryDelay    time.Duration
	now           func() time.Time
	log           logger.Logger
}

var _ repository.Store = (*Database)(nil)

func newDatabase(pool pgxPool, opts ...Option) *Database {
	db := &Database{
		pool:          pool,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
		now:           time.Now,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// New connects a traced pgx pool to databaseURL and verifies it with a ping.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Database, error) {
	db := newDatabase(nil, opts...)

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	if db.maxConns > 0 {
		cfg.MaxConns = db.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, repository.Unavailable(err, "create connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, repository.Unavailable(err, "ping database")
	}

	db.pool = pool
	return db, nil
}

// NewQueryBuilder returns a squirrel builder using $n placeholders.
func NewQueryBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (db *Database) Ping(ctx context.Context) error {
	return repository.Unavailable(db.pool.Ping(ctx), "ping")
}

func (db *Database) Close() error {
	db.pool.Close()
	return nil
}
