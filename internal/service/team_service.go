package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/yakoovad/ctf-platform/internal/auth"
	"github.com/yakoovad/ctf-platform/internal/cache"
	"github.com/yakoovad/ctf-platform/internal/contest"
	"github.com/yakoovad/ctf-platform/internal/db"
	"github.com/yakoovad/ctf-platform/internal/model"
	"github.com/yakoovad/ctf-platform/internal/repository"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

const msgInvalidCredentials = "Invalid email or password"

type TeamService struct {
	tx     db.Transactor
	clock  *contest.Clock
	tokens *auth.TokenManager

	emailDomain string

	teams   repository.TeamRepository
	members repository.MemberRepository
	solves  repository.SolveRepository

	scoreboard cache.Scoreboard
}

func NewTeamService(tx db.Transactor, clock *contest.Clock, tokens *auth.TokenManager) *TeamService {
	return &TeamService{
		tx:         tx,
		clock:      clock,
		tokens:     tokens,
		scoreboard: cache.NewNopScoreboard(),
	}
}

// Register creates a team and its members in one transaction. The first member becomes leader.
func (t *TeamService) Register(ctx context.Context, req *model.RegisterTeam) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	if err := t.clock.Require(contest.PhaseRegistration); err != nil {
		l.Warn("registration rejected by phase gate", zap.String("phase", string(t.clock.Phase())))
		return nil, NewError(ErrorCodePhaseGate, err.Error())
	}

	req.Normalize()
	l.Info("registering team", zap.String("team_name", req.Name), zap.Int("members", len(req.Members)))

	seen := make(map[string]struct{}, len(req.Members))
	for _, m := range req.Members {
		if !t.institutional(m.Email) {
			return nil, NewError(ErrorCodeValidation, "email must belong to @"+t.emailDomain)
		}
		if _, ok := seen[m.Email]; ok {
			l.Warn("duplicate email in registration", zap.String("email", m.Email))
			return nil, NewError(ErrorCodeEmailExists, "duplicate email: "+m.Email)
		}
		seen[m.Email] = struct{}{}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		l.Error("failed to hash password", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to register team")
	}

	team := &model.Team{}

	err = t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		repoTeam := &repository.Team{
			Name:         req.Name,
			ContactNo:    req.ContactNo,
			PasswordHash: hash,
		}
		err := t.teams.Create(txCtx, repoTeam)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			l.Warn("team already exists", zap.String("team_name", req.Name))
			return NewError(ErrorCodeTeamExists, "team name already exists")
		case err != nil:
			l.Error("failed to create team", zap.String("team_name", req.Name), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to register team")
		}

		members := make([]*model.Member, 0, len(req.Members))
		for i, m := range req.Members {
			_, err = t.members.GetByEmail(txCtx, m.Email)
			switch {
			case err == nil:
				l.Warn("email already registered", zap.String("email", m.Email))
				return NewError(ErrorCodeEmailExists, "email already registered: "+m.Email)
			case !errors.Is(err, repository.ErrNotFound):
				l.Error("failed to look up member", zap.String("email", m.Email), zap.Error(err))
				return NewError(ErrorCodeInternal, "failed to register team")
			}

			repoMember := &repository.Member{
				Name:     m.Name,
				Email:    m.Email,
				TeamID:   repoTeam.ID,
				IsLeader: i == 0,
			}
			err = t.members.Create(txCtx, repoMember)
			switch {
			case errors.Is(err, repository.ErrAlreadyExists):
				l.Warn("email already registered", zap.String("email", m.Email))
				return NewError(ErrorCodeEmailExists, "email already registered: "+m.Email)
			case err != nil:
				l.Error("failed to create member", zap.String("email", m.Email), zap.Error(err))
				return NewError(ErrorCodeInternal, "failed to register team")
			}

			members = append(members, toModelMember(repoMember))
		}

		*team = *toModelTeam(repoTeam)
		team.Members = members

		return nil
	})
	if res := fromTxError(l, err, "failed to register team"); res != nil {
		return nil, res
	}

	l.Info("team registered", zap.Int64("team_id", team.ID), zap.String("team_name", team.Name))

	return team, nil
}

func (t *TeamService) Login(ctx context.Context, req *model.Login) (*model.LoginResult, *Error) {
	l := logger.FromContext(ctx)

	if err := t.clock.Require(contest.PhaseStarted); err != nil {
		l.Warn("login rejected by phase gate", zap.String("phase", string(t.clock.Phase())))
		return nil, NewError(ErrorCodePhaseGate, err.Error())
	}

	req.Normalize()

	if !t.institutional(req.Email) {
		return nil, NewError(ErrorCodeValidation, "email must belong to @"+t.emailDomain)
	}

	member, err := t.members.GetByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		l.Warn("login for unknown email", zap.String("email", req.Email))
		return nil, NewError(ErrorCodeUnauthorized, msgInvalidCredentials)
	case err != nil:
		l.Error("failed to get member", zap.String("email", req.Email), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to log in")
	}

	team, err := t.teams.Get(ctx, member.TeamID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		l.Warn("member without team", zap.Int64("member_id", member.ID))
		return nil, NewError(ErrorCodeUnauthorized, msgInvalidCredentials)
	case err != nil:
		l.Error("failed to get team", zap.Int64("team_id", member.TeamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to log in")
	}

	if !auth.VerifyPassword(req.Password, team.PasswordHash) {
		l.Warn("wrong password", zap.Int64("team_id", team.ID))
		return nil, NewError(ErrorCodeUnauthorized, msgInvalidCredentials)
	}

	token, err := t.tokens.Issue(team.ID, member.ID)
	if err != nil {
		l.Error("failed to issue token", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to log in")
	}

	l.Info("member logged in", zap.Int64("team_id", team.ID), zap.Int64("member_id", member.ID))

	return &model.LoginResult{
		Token:     token,
		ExpiresAt: t.clock.Now().Add(t.tokens.TTL()),
		TeamID:    team.ID,
		MemberID:  member.ID,
	}, nil
}

// UpdateTeam changes the team name and/or password. Only the leader may do this.
func (t *TeamService) UpdateTeam(ctx context.Context, identity *model.Identity, upd *model.TeamUpdate) (*model.Team, *Error) {
	l := logger.FromContext(ctx).With(zap.Int64("team_id", identity.Team.ID))

	if err := t.clock.Require(contest.PhaseStarted); err != nil {
		return nil, NewError(ErrorCodePhaseGate, err.Error())
	}

	if !identity.Member.IsLeader {
		l.Warn("team update by non-leader", zap.Int64("member_id", identity.Member.ID))
		return nil, NewError(ErrorCodeForbidden, "only the team leader can update the team")
	}

	upd.Normalize()
	if upd.Empty() {
		return nil, NewError(ErrorCodeValidation, "nothing to update")
	}

	changePassword := upd.CurrentPassword != "" || upd.NewPassword != ""
	if changePassword && (upd.CurrentPassword == "" || upd.NewPassword == "") {
		return nil, NewError(ErrorCodeValidation, "both current and new password are required")
	}

	team := &model.Team{}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		patch := &repository.TeamPatch{
			ID:   identity.Team.ID,
			Name: upd.Name,
		}

		if changePassword {
			current, err := t.teams.Get(txCtx, identity.Team.ID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return NewError(ErrorCodeNotFound, "team not found")
			case err != nil:
				l.Error("failed to get team", zap.Error(err))
				return NewError(ErrorCodeInternal, "failed to update team")
			}

			if !auth.VerifyPassword(upd.CurrentPassword, current.PasswordHash) {
				l.Warn("invalid current password")
				return NewError(ErrorCodeUnauthorized, "invalid current password")
			}

			hash, err := auth.HashPassword(upd.NewPassword)
			if err != nil {
				l.Error("failed to hash password", zap.Error(err))
				return NewError(ErrorCodeInternal, "failed to update team")
			}
			patch.PasswordHash = &hash
		}

		repoTeam, err := t.teams.Patch(txCtx, patch)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return NewError(ErrorCodeTeamExists, "team name already exists")
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "team not found")
		case err != nil:
			l.Error("failed to patch team", zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to update team")
		}

		*team = *toModelTeam(repoTeam)
		return nil
	})
	if res := fromTxError(l, err, "failed to update team"); res != nil {
		return nil, res
	}

	l.Info("team updated", zap.Bool("renamed", upd.Name != nil), zap.Bool("password_changed", changePassword))

	// Cached leaderboard and activity snapshots carry the team name.
	if upd.Name != nil {
		if err = t.scoreboard.Invalidate(ctx); err != nil {
			l.Warn("failed to invalidate scoreboard cache", zap.Error(err))
		}
	}

	return team, nil
}

// GetTeam returns the team with its members, leader first.
func (t *TeamService) GetTeam(ctx context.Context, id int64) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting team", zap.Int64("team_id", id))

	repoTeam, err := t.teams.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("team not found", zap.Int64("team_id", id))
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.Int64("team_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team")
	}

	repoMembers, err := t.teams.GetTeamMembers(ctx, id)
	if err != nil {
		l.Error("failed to get team members", zap.Int64("team_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team members")
	}

	team := toModelTeam(repoTeam)
	team.Members = make([]*model.Member, 0, len(repoMembers))
	for _, m := range repoMembers {
		team.Members = append(team.Members, toModelMember(m))
	}

	return team, nil
}

func (t *TeamService) Stats(ctx context.Context, id int64) (*model.TeamStats, *Error) {
	l := logger.FromContext(ctx)

	repoTeam, err := t.teams.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.Int64("team_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team stats")
	}

	count, err := t.solves.CountByTeam(ctx, id)
	if err != nil {
		l.Error("failed to count solves", zap.Int64("team_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team stats")
	}

	stats := &model.TeamStats{
		ID:         repoTeam.ID,
		Name:       repoTeam.Name,
		Score:      repoTeam.Score,
		CreatedAt:  repoTeam.CreatedAt,
		SolveCount: count,
	}

	last, err := t.solves.LastByTeam(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		l.Error("failed to get last solve", zap.Int64("team_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team stats")
	default:
		stats.LastSolve = &model.LastSolve{
			Time:      last.SolvedAt,
			Challenge: last.ChallengeTitle,
			Points:    last.Points,
		}
	}

	return stats, nil
}

func (t *TeamService) institutional(email string) bool {
	if t.emailDomain == "" {
		return true
	}
	return strings.HasSuffix(email, "@"+strings.ToLower(t.emailDomain))
}

func (t *TeamService) WithEmailDomain(domain string) *TeamService {
	t.emailDomain = domain
	return t
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithMemberRepo(r repository.MemberRepository) *TeamService {
	t.members = r
	return t
}

func (t *TeamService) WithSolveRepo(r repository.SolveRepository) *TeamService {
	t.solves = r
	return t
}

func (t *TeamService) WithScoreboardCache(sc cache.Scoreboard) *TeamService {
	t.scoreboard = sc
	return t
}

func toModelTeam(t *repository.Team) *model.Team {
	return &model.Team{
		ID:        t.ID,
		Name:      t.Name,
		ContactNo: t.ContactNo,
		Score:     t.Score,
		CreatedAt: t.CreatedAt,
	}
}

func toModelMember(m *repository.Member) *model.Member {
	return &model.Member{
		ID:       m.ID,
		Name:     m.Name,
		Email:    m.Email,
		IsLeader: m.IsLeader,
	}
}
