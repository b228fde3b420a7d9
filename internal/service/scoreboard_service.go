package service

import (
	"context"

	"github.com/yakoovad/ctf-platform/internal/cache"
	"github.com/yakoovad/ctf-platform/internal/model"
	"github.com/yakoovad/ctf-platform/internal/repository"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 100
)

// ScoreboardService serves the public leaderboard and activity feed through the cache.
type ScoreboardService struct {
	teams      repository.TeamRepository
	solves     repository.SolveRepository
	scoreboard cache.Scoreboard
}

func NewScoreboardService() *ScoreboardService {
	return &ScoreboardService{scoreboard: cache.NewNopScoreboard()}
}

func (s *ScoreboardService) Leaderboard(ctx context.Context) ([]*model.LeaderboardEntry, *Error) {
	l := logger.FromContext(ctx)

	var entries []*model.LeaderboardEntry
	if s.cached(ctx, cache.LeaderboardKey, &entries) {
		return entries, nil
	}

	teams, err := s.teams.Leaderboard(ctx)
	if err != nil {
		l.Error("failed to load leaderboard", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to load leaderboard")
	}

	entries = make([]*model.LeaderboardEntry, 0, len(teams))
	for i, t := range teams {
		entries = append(entries, &model.LeaderboardEntry{
			Rank:      i + 1,
			ID:        t.ID,
			Name:      t.Name,
			Score:     t.Score,
			CreatedAt: t.CreatedAt,
		})
	}

	s.store(ctx, cache.LeaderboardKey, entries)
	return entries, nil
}

// Activity returns the latest solves. limit is clamped to [1, MaxActivityLimit].
func (s *ScoreboardService) Activity(ctx context.Context, limit int) ([]*model.Activity, *Error) {
	l := logger.FromContext(ctx)
	limit = ClampActivityLimit(limit)

	var items []*model.Activity
	key := cache.ActivityKey(limit)
	if s.cached(ctx, key, &items) {
		return items, nil
	}

	recent, err := s.solves.Recent(ctx, limit)
	if err != nil {
		l.Error("failed to load activity", zap.Int("limit", limit), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to load activity")
	}

	items = make([]*model.Activity, 0, len(recent))
	for _, a := range recent {
		items = append(items, &model.Activity{
			TeamName:       a.TeamName,
			ChallengeTitle: a.ChallengeTitle,
			Points:         a.Points,
			Timestamp:      a.SolvedAt,
		})
	}

	s.store(ctx, key, items)
	return items, nil
}

func ClampActivityLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxActivityLimit:
		return MaxActivityLimit
	default:
		return limit
	}
}

func (s *ScoreboardService) cached(ctx context.Context, key string, dst any) bool {
	hit, err := s.scoreboard.Get(ctx, key, dst)
	if err != nil {
		logger.FromContext(ctx).Warn("scoreboard cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *ScoreboardService) store(ctx context.Context, key string, value any) {
	if err := s.scoreboard.Set(ctx, key, value); err != nil {
		logger.FromContext(ctx).Warn("scoreboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *ScoreboardService) WithTeamRepo(r repository.TeamRepository) *ScoreboardService {
	s.teams = r
	return s
}

func (s *ScoreboardService) WithSolveRepo(r repository.SolveRepository) *ScoreboardService {
	s.solves = r
	return s
}

func (s *ScoreboardService) WithScoreboardCache(sc cache.Scoreboard) *ScoreboardService {
	s.scoreboard = sc
	return s
}
