package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"

	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/internal/domain/model"
)

var agentColumns = []string{ //nolint:gochecknoglobals // column list shared by queries
	"id", "email", "employee_id", "name", "role", "team_leader_id", "manager_id", "weights", "created_at",
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

type dbAgent struct {
	ID           string
	Email        null.String
	EmployeeID   null.String
	Name         string
	Role         string
	TeamLeaderID null.String
	ManagerID    null.String
	Weights      []byte
}

func scanAgent(row pgx.CollectableRow) (model.Agent, error) {
	var (
		a   dbAgent
		out model.Agent
	)
	if err := row.Scan(&a.ID, &a.Email, &a.EmployeeID, &a.Name, &a.Role, &a.TeamLeaderID, &a.ManagerID, &a.Weights, &out.CreatedAt); err != nil {
		return model.Agent{}, err
	}
	out.ID = a.ID
	out.Email = a.Email.ValueOrZero()
	out.EmployeeID = a.EmployeeID.ValueOrZero()
	out.Name = a.Name
	out.Role = model.Role(a.Role)
	out.TeamLeaderID = a.TeamLeaderID.ValueOrZero()
	out.ManagerID = a.ManagerID.ValueOrZero()
	if len(a.Weights) > 0 {
		var w model.WeightSet
		if err := json.Unmarshal(a.Weights, &w); err != nil {
			return model.Agent{}, errors.Wrap(err, "decode agent weights")
		}
		out.Weights = &w
	}
	return out, nil
}

func (db *Database) queryAgents(ctx context.Context, q squirrel.SelectBuilder, op string) ([]model.Agent, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "squirrel.ToSql error")
	}
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err, op)
	}
	agents, err := pgx.CollectRows(rows, scanAgent)
	if err != nil {
		return nil, classify(err, op)
	}
	return agents, nil
}

func (db *Database) queryAgent(ctx context.Context, q squirrel.SelectBuilder, op string) (model.Agent, error) {
	agents, err := db.queryAgents(ctx, q.Limit(1), op)
	if err != nil {
		return model.Agent{}, err
	}
	if len(agents) == 0 {
		return model.Agent{}, errors.Wrap(repository.ErrNotFound, op)
	}
	return agents[0], nil
}

func (db *Database) SaveAgent(ctx context.Context, a model.Agent) (model.Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = strings.TrimSpace(a.Email)
	if a.Email == "" && a.EmployeeID == "" {
		return model.Agent{}, errors.Mark(errors.New("agent needs an email or an employee id"), model.ErrValidation)
	}
	if a.Role == "" {
		a.Role = model.RoleAgent
	}
	var weights []byte
	if a.Weights != nil {
		raw, err := json.Marshal(a.Weights)
		if err != nil {
			return model.Agent{}, errors.Wrap(err, "encode agent weights")
		}
		weights = raw
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = db.now().UTC()
	}

	sql, args, err := NewQueryBuilder().
		Insert(tableAgents).
		Columns(agentColumns...).
		Values(a.ID, null.NewString(a.Email, a.Email != ""), null.NewString(a.EmployeeID, a.EmployeeID != ""),
			a.Name, string(a.Role), null.NewString(a.TeamLeaderID, a.TeamLeaderID != ""),
			null.NewString(a.ManagerID, a.ManagerID != ""), weights, a.CreatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET " +
			"email = EXCLUDED.email, employee_id = EXCLUDED.employee_id, name = EXCLUDED.name, role = EXCLUDED.role, " +
			"team_leader_id = EXCLUDED.team_leader_id, manager_id = EXCLUDED.manager_id, weights = EXCLUDED.weights " +
			"RETURNING created_at").
		ToSql()
	if err != nil {
		return model.Agent{}, errors.Wrap(err, "squirrel.ToSql error")
	}
	if err := db.pool.QueryRow(ctx, sql, args...).Scan(&a.CreatedAt); err != nil {
		return model.Agent{}, classify(err, "save agent")
	}
	return a, nil
}

func (db *Database) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	return db.queryAgent(ctx, NewQueryBuilder().Select(agentColumns...).From(tableAgents).
		Where(squirrel.Eq{"id": id}), "get agent "+id)
}

func (db *Database) ListAgents(ctx context.Context) ([]model.Agent, error) {
	return db.queryAgents(ctx, NewQueryBuilder().Select(agentColumns...).From(tableAgents).
		OrderBy("id"), "list agents")
}

func (db *Database) ResolveAgent(ctx context.Context, identifier string) (model.Agent, error) {
	identifier = strings.TrimSpace(identifier)
	q := NewQueryBuilder().Select(agentColumns...).From(tableAgents)
	if repository.IsEmail(identifier) {
		q = q.Where("lower(email) = lower(?)", identifier)
	} else {
		q = q.Where(squirrel.Eq{"employee_id": identifier})
	}
	return db.queryAgent(ctx, q, "resolve agent "+identifier)
}

func (db *Database) AgentsUnderTeamLeader(ctx context.Context, leaderID string) ([]model.Agent, error) {
	return db.queryAgents(ctx, NewQueryBuilder().Select(agentColumns...).From(tableAgents).
		Where(squirrel.Eq{"team_leader_id": leaderID}).
		OrderBy("id"), "agents under team leader")
}

// AgentsUnderManager resolves the two-level hierarchy with one join.
func (db *Database) AgentsUnderManager(ctx context.Context, managerID string) ([]model.Agent, error) {
	return db.queryAgents(ctx, NewQueryBuilder().Select(prefixed("a", agentColumns)...).
		From(tableAgents+" a").
		Join(tableAgents+" tl ON a.team_leader_id = tl.id").
		Where(squirrel.Eq{"tl.manager_id": managerID}).
		OrderBy("a.id"), "agents under manager")
}
