package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/yakoovad/ctf-platform/internal/cache"
	"github.com/yakoovad/ctf-platform/internal/contest"
	"github.com/yakoovad/ctf-platform/internal/db"
	"github.com/yakoovad/ctf-platform/internal/model"
	"github.com/yakoovad/ctf-platform/internal/repository"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

type ChallengeService struct {
	tx    db.Transactor
	clock *contest.Clock

	challenges repository.ChallengeRepository
	solves     repository.SolveRepository
	teams      repository.TeamRepository
	scoreboard cache.Scoreboard
}

func NewChallengeService(tx db.Transactor, clock *contest.Clock) *ChallengeService {
	return &ChallengeService{
		tx:         tx,
		clock:      clock,
		scoreboard: cache.NewNopScoreboard(),
	}
}

// List groups every challenge by category, marking the ones the team has solved.
func (c *ChallengeService) List(ctx context.Context, identity *model.Identity) (*model.ChallengeList, *Error) {
	l := logger.FromContext(ctx)

	repoChallenges, err := c.challenges.List(ctx)
	if err != nil {
		l.Error("failed to list challenges", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list challenges")
	}

	counts, err := c.solves.CountByChallenge(ctx)
	if err != nil {
		l.Error("failed to count solves", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list challenges")
	}

	solvedIDs, err := c.solves.SolvedChallengeIDs(ctx, identity.Team.ID)
	if err != nil {
		l.Error("failed to get solved challenges", zap.Int64("team_id", identity.Team.ID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list challenges")
	}
	solved := make(map[int64]bool, len(solvedIDs))
	for _, id := range solvedIDs {
		solved[id] = true
	}

	res := &model.ChallengeList{
		Categories:           make([]string, 0),
		ChallengesByCategory: make(map[string][]*model.Challenge),
	}
	for _, ch := range repoChallenges {
		if _, ok := res.ChallengesByCategory[ch.Category]; !ok {
			res.Categories = append(res.Categories, ch.Category)
		}
		res.ChallengesByCategory[ch.Category] = append(
			res.ChallengesByCategory[ch.Category],
			toModelChallenge(ch, counts[ch.ID], solved[ch.ID]),
		)
	}

	return res, nil
}

func (c *ChallengeService) Get(ctx context.Context, identity *model.Identity, id int64) (*model.Challenge, *Error) {
	l := logger.FromContext(ctx)

	ch, err := c.challenges.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "challenge not found")
	}
	if err != nil {
		l.Error("failed to get challenge", zap.Int64("challenge_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get challenge")
	}

	counts, err := c.solves.CountByChallenge(ctx)
	if err != nil {
		l.Error("failed to count solves", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get challenge")
	}

	solved, err := c.solves.Exists(ctx, identity.Team.ID, id)
	if err != nil {
		l.Error("failed to check solve", zap.Int64("challenge_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get challenge")
	}

	return toModelChallenge(ch, counts[id], solved), nil
}

// SubmitFlag checks a flag and, when it matches, records the solve and credits
// the team in a single transaction. The (team, challenge) unique constraint is
// what finally decides between two concurrent correct submissions.
func (c *ChallengeService) SubmitFlag(ctx context.Context, identity *model.Identity, challengeID int64, flag string) (*model.SubmitResult, *Error) {
	l := logger.FromContext(ctx).With(
		zap.Int64("team_id", identity.Team.ID),
		zap.Int64("challenge_id", challengeID),
	)

	if err := c.clock.Require(contest.PhaseStarted); err != nil {
		l.Warn("submission rejected by phase gate", zap.String("phase", string(c.clock.Phase())))
		return nil, NewError(ErrorCodePhaseGate, err.Error())
	}

	flag = strings.TrimSpace(flag)
	res := &model.SubmitResult{}

	err := c.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		ch, err := c.challenges.Get(txCtx, challengeID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "challenge not found")
		case err != nil:
			l.Error("failed to get challenge", zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to submit flag")
		}

		exists, err := c.solves.Exists(txCtx, identity.Team.ID, challengeID)
		if err != nil {
			l.Error("failed to check solve", zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to submit flag")
		}
		if exists {
			return NewError(ErrorCodeAlreadySolved, "You have already solved this challenge")
		}

		if subtle.ConstantTimeCompare([]byte(flag), []byte(ch.Flag)) != 1 {
			l.Info("incorrect flag")
			return NewError(ErrorCodeIncorrectFlag, "Incorrect flag")
		}

		err = c.solves.Create(txCtx, &repository.Solve{
			TeamID:      identity.Team.ID,
			ChallengeID: challengeID,
		})
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			l.Warn("concurrent solve lost the race")
			return NewError(ErrorCodeAlreadySolved, "You have already solved this challenge")
		case err != nil:
			l.Error("failed to record solve", zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to submit flag")
		}

		score, err := c.teams.AddScore(txCtx, identity.Team.ID, ch.Points)
		if err != nil {
			l.Error("failed to credit team", zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to submit flag")
		}

		l.Info("challenge solved", zap.Int("points", ch.Points), zap.Int("score", score))

		res.Points = ch.Points
		res.Message = fmt.Sprintf("Congratulations! You earned %d points.", ch.Points)
		return nil
	})
	if svcErr := fromTxError(l, err, "failed to submit flag"); svcErr != nil {
		return nil, svcErr
	}

	if err = c.scoreboard.Invalidate(ctx); err != nil {
		l.Warn("failed to invalidate scoreboard cache", zap.Error(err))
	}

	return res, nil
}

func (c *ChallengeService) WithChallengeRepo(r repository.ChallengeRepository) *ChallengeService {
	c.challenges = r
	return c
}

func (c *ChallengeService) WithSolveRepo(r repository.SolveRepository) *ChallengeService {
	c.solves = r
	return c
}

func (c *ChallengeService) WithTeamRepo(r repository.TeamRepository) *ChallengeService {
	c.teams = r
	return c
}

func (c *ChallengeService) WithScoreboardCache(sc cache.Scoreboard) *ChallengeService {
	c.scoreboard = sc
	return c
}

func toModelChallenge(ch *repository.Challenge, solves int, solved bool) *model.Challenge {
	files := ch.Files
	if files == nil {
		files = []string{}
	}
	return &model.Challenge{
		ID:          ch.ID,
		Title:       ch.Title,
		Description: ch.Description,
		Category:    ch.Category,
		Points:      ch.Points,
		Files:       files,
		Solves:      solves,
		IsSolved:    solved,
		CreatedAt:   ch.CreatedAt,
	}
}
