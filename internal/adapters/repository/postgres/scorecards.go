package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"

	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/pkg/logger"
)

var scorecardColumns = []string{ //nolint:gochecknoglobals // column list shared by queries
	"id", "agent_id", "month", "year",
	"service", "productivity", "quality", "assiduity", "performance", "adherence", "lateness", "break_exceeds",
	"weights", "total_score", "percentage", "notes", "created_by", "updated_by", "created_at", "updated_at",
}

const upsertConflict = "ON CONFLICT (agent_id, month, year) DO UPDATE SET " +
	"service = EXCLUDED.service, productivity = EXCLUDED.productivity, quality = EXCLUDED.quality, " +
	"assiduity = EXCLUDED.assiduity, performance = EXCLUDED.performance, adherence = EXCLUDED.adherence, " +
	"lateness = EXCLUDED.lateness, break_exceeds = EXCLUDED.break_exceeds, weights = EXCLUDED.weights, " +
	"total_score = EXCLUDED.total_score, percentage = EXCLUDED.percentage, notes = EXCLUDED.notes, " +
	"updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at"

func scanScorecard(row pgx.CollectableRow) (model.ScorecardRecord, error) {
	var (
		r                           model.ScorecardRecord
		weights                     []byte
		notes, createdBy, updatedBy null.String
	)
	if err := row.Scan(
		&r.ID, &r.AgentID, &r.Month, &r.Year,
		&r.Service, &r.Productivity, &r.Quality, &r.Assiduity, &r.Performance, &r.Adherence, &r.Lateness, &r.BreakExceeds,
		&weights, &r.TotalScore, &r.Percentage, &notes, &createdBy, &updatedBy, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return model.ScorecardRecord{}, err
	}
	if err := json.Unmarshal(weights, &r.Weights); err != nil {
		return model.ScorecardRecord{}, errors.Wrap(err, "decode scorecard weights")
	}
	r.Notes = notes.ValueOrZero()
	r.CreatedBy = createdBy.ValueOrZero()
	r.UpdatedBy = updatedBy.ValueOrZero()
	return r, nil
}

func (db *Database) queryScorecards(ctx context.Context, q squirrel.Sqlizer, op string) ([]model.ScorecardRecord, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "squirrel.ToSql error")
	}
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err, op)
	}
	out, err := pgx.CollectRows(rows, scanScorecard)
	if err != nil {
		return nil, classify(err, op)
	}
	return out, nil
}

// Upsert writes with INSERT ... ON CONFLICT so concurrent submissions for the
// same agent and period collapse into one row. Serialization failures and
// deadlocks are retried.
func (db *Database) Upsert(ctx context.Context, w model.ScorecardWrite) (model.ScorecardRecord, error) {
	res, err := repository.Derive(w)
	if err != nil {
		return model.ScorecardRecord{}, err
	}
	weights, err := json.Marshal(w.Weights)
	if err != nil {
		return model.ScorecardRecord{}, errors.Wrap(err, "encode weights")
	}
	now := db.now().UTC()
	m := w.Metrics
	actor := null.NewString(w.Actor, w.Actor != "")

	sql, args, err := NewQueryBuilder().
		Insert(tableScorecards).
		Columns(scorecardColumns...).
		Values(uuid.NewString(), w.AgentID, w.Period.Month, w.Period.Year,
			m.Service, m.Productivity, m.Quality, m.Assiduity, m.Performance, m.Adherence, m.Lateness, m.BreakExceeds,
			weights, res.TotalScore, res.Percentage, null.NewString(w.Notes, w.Notes != ""), actor, actor, now, now).
		Suffix(upsertConflict).
		Suffix("RETURNING " + strings.Join(scorecardColumns, ", ")).
		ToSql()
	if err != nil {
		return model.ScorecardRecord{}, errors.Wrap(err, "squirrel.ToSql error")
	}

	var rec model.ScorecardRecord
	err = retry.Do(
		func() error {
			rows, err := db.pool.Query(ctx, sql, args...)
			if err != nil {
				return err
			}
			rec, err = pgx.CollectExactlyOneRow(rows, scanScorecard)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(db.retryAttempts),
		retry.Delay(db.retryDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			db.log.Warn(ctx, "retrying scorecard upsert", logger.Int("attempt", int(n)+1), logger.Error(err))
		}),
	)
	if err != nil {
		return model.ScorecardRecord{}, classify(err, "upsert scorecard")
	}
	return rec, nil
}

func (db *Database) RecentSeries(ctx context.Context, agentID string, limit int) ([]model.ScorecardRecord, error) {
	if limit <= 0 {
		return nil, errors.Wrapf(repository.ErrInvalidLimit, "limit %d", limit)
	}
	return db.queryScorecards(ctx, NewQueryBuilder().
		Select(scorecardColumns...).
		From(tableScorecards).
		Where(squirrel.Eq{"agent_id": agentID}).
		OrderBy("year DESC", "month DESC").
		Limit(uint64(limit)), "recent series")
}

// PercentagesFor reads every listed agent's percentage in one query.
func (db *Database) PercentagesFor(ctx context.Context, agentIDs []string, p model.Period) (map[string]float64, error) {
	out := make(map[string]float64, len(agentIDs))
	if len(agentIDs) == 0 {
		return out, nil
	}
	sql, args, err := NewQueryBuilder().
		Select("agent_id", "percentage").
		From(tableScorecards).
		Where("agent_id = ANY(?)", agentIDs).
		Where(squirrel.Eq{"month": p.Month, "year": p.Year}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "squirrel.ToSql error")
	}
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err, "percentages for period")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  string
			pct float64
		)
		if err := rows.Scan(&id, &pct); err != nil {
			return nil, classify(err, "scan percentage")
		}
		out[id] = pct
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "percentages for period")
	}
	return out, nil
}

func (db *Database) LatestFor(ctx context.Context, agentIDs []string) (map[string]model.ScorecardRecord, error) {
	out := make(map[string]model.ScorecardRecord, len(agentIDs))
	if len(agentIDs) == 0 {
		return out, nil
	}
	recs, err := db.queryScorecards(ctx, NewQueryBuilder().
		Select(scorecardColumns...).
		Options("DISTINCT ON (agent_id)").
		From(tableScorecards).
		Where("agent_id = ANY(?)", agentIDs).
		OrderBy("agent_id", "year DESC", "month DESC"), "latest scorecards")
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.AgentID] = r
	}
	return out, nil
}

func (db *Database) TopN(ctx context.Context, p model.Period, n int) ([]model.ScorecardRecord, error) {
	if n <= 0 {
		return nil, errors.Wrapf(repository.ErrInvalidLimit, "limit %d", n)
	}
	return db.queryScorecards(ctx, NewQueryBuilder().
		Select(scorecardColumns...).
		From(tableScorecards).
		Where(squirrel.Eq{"month": p.Month, "year": p.Year}).
		OrderBy("percentage DESC", "agent_id ASC").
		Limit(uint64(n)), "top scorecards")
}

func (db *Database) List(ctx context.Context, q repository.ExportQuery) ([]model.ScorecardRecord, error) {
	sb := NewQueryBuilder().Select(scorecardColumns...).From(tableScorecards)
	if len(q.AgentIDs) > 0 {
		sb = sb.Where("agent_id = ANY(?)", q.AgentIDs)
	}
	if q.From != nil {
		sb = sb.Where("year * 12 + month - 1 >= ?", q.From.Index())
	}
	if q.To != nil {
		sb = sb.Where("year * 12 + month - 1 <= ?", q.To.Index())
	}
	sb = sb.OrderBy("year", "month", "agent_id")
	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}
	return db.queryScorecards(ctx, sb, "list scorecards")
}

func (db *Database) Count(ctx context.Context) (int, error) {
	sql, args, err := NewQueryBuilder().Select("count(*)").From(tableScorecards).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "squirrel.ToSql error")
	}
	var n int
	if err := db.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, classify(err, "count scorecards")
	}
	return n, nil
}
