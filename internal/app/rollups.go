package service

import (
	"context"
	"time"

	"github.com/okian/scorecard/internal/adapters/cache"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/rollup"
	"github.com/okian/scorecard/pkg/metrics"
)

// TeamRollup summarises the agents of one team leader for a period.
func (s *Service) TeamRollup(ctx context.Context, leaderID string, p model.Period) (model.TeamRollup, error) {
	if err := p.Validate(); err != nil {
		return model.TeamRollup{}, err
	}
	return cache.Fetch(ctx, s.cache, cache.TeamRollupKey(leaderID, p), 0,
		func(ctx context.Context) (model.TeamRollup, error) {
			start := time.Now()
			defer func() { metrics.RecordRollupLatency("team", float64(time.Since(start).Milliseconds())) }()
			return rollup.Team(ctx, s.store, leaderID, p)
		})
}

// ManagerRollup averages the team averages under one manager for a period.
func (s *Service) ManagerRollup(ctx context.Context, managerID string, p model.Period) (model.ManagerRollup, error) {
	if err := p.Validate(); err != nil {
		return model.ManagerRollup{}, err
	}
	return cache.Fetch(ctx, s.cache, cache.ManagerRollupKey(managerID, p), 0,
		func(ctx context.Context) (model.ManagerRollup, error) {
			start := time.Now()
			defer func() { metrics.RecordRollupLatency("manager", float64(time.Since(start).Milliseconds())) }()
			return rollup.Manager(ctx, s.store, managerID, p)
		})
}
