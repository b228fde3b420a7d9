package service

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/ctf-platform/internal/repository"
)

// MockTransactor runs fn directly. A non-nil CommitErr simulates a failed commit.
type MockTransactor struct {
	mock.Mock
	CommitErr error
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return fmt.Errorf("transaction function failed: %w", err)
	}
	return m.CommitErr
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Create(ctx context.Context, team *repository.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *MockTeamRepository) Get(ctx context.Context, id int64) (*repository.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Patch(ctx context.Context, patch *repository.TeamPatch) (*repository.Team, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) AddScore(ctx context.Context, id int64, points int) (int, error) {
	args := m.Called(ctx, id, points)
	return args.Int(0), args.Error(1)
}

func (m *MockTeamRepository) Leaderboard(ctx context.Context) ([]*repository.Team, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetTeamMembers(ctx context.Context, id int64) ([]*repository.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Member), args.Error(1)
}

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) Create(ctx context.Context, member *repository.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) Get(ctx context.Context, id int64) (*repository.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Member), args.Error(1)
}

func (m *MockMemberRepository) GetByEmail(ctx context.Context, email string) (*repository.Member, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Member), args.Error(1)
}

type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) Get(ctx context.Context, id int64) (*repository.Challenge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) List(ctx context.Context) ([]*repository.Challenge, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) Upsert(ctx context.Context, ch *repository.Challenge) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

type MockSolveRepository struct {
	mock.Mock
}

func (m *MockSolveRepository) Create(ctx context.Context, solve *repository.Solve) error {
	args := m.Called(ctx, solve)
	return args.Error(0)
}

func (m *MockSolveRepository) Exists(ctx context.Context, teamID, challengeID int64) (bool, error) {
	args := m.Called(ctx, teamID, challengeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSolveRepository) SolvedChallengeIDs(ctx context.Context, teamID int64) ([]int64, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockSolveRepository) CountByChallenge(ctx context.Context) (map[int64]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int), args.Error(1)
}

func (m *MockSolveRepository) CountByTeam(ctx context.Context, teamID int64) (int, error) {
	args := m.Called(ctx, teamID)
	return args.Int(0), args.Error(1)
}

func (m *MockSolveRepository) LastByTeam(ctx context.Context, teamID int64) (*repository.SolveActivity, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.SolveActivity), args.Error(1)
}

func (m *MockSolveRepository) Recent(ctx context.Context, limit int) ([]*repository.SolveActivity, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.SolveActivity), args.Error(1)
}

type MockScoreboardCache struct {
	mock.Mock
}

func (m *MockScoreboardCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	args := m.Called(ctx, key, dst)
	return args.Bool(0), args.Error(1)
}

func (m *MockScoreboardCache) Set(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockScoreboardCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
