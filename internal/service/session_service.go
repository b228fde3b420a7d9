package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/ctf-platform/internal/auth"
	"github.com/yakoovad/ctf-platform/internal/model"
	"github.com/yakoovad/ctf-platform/internal/repository"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

// SessionService turns a session token into the member and team it belongs to.
type SessionService struct {
	tokens *auth.TokenManager

	teams   repository.TeamRepository
	members repository.MemberRepository
}

func NewSessionService(tokens *auth.TokenManager) *SessionService {
	return &SessionService{tokens: tokens}
}

// Resolve never fails loudly: any bad token, missing row or storage error
// yields (nil, false) and the caller treats the request as anonymous.
func (s *SessionService) Resolve(ctx context.Context, token string) (*model.Identity, bool) {
	if token == "" {
		return nil, false
	}

	sub, ok := s.tokens.Resolve(token)
	if !ok {
		return nil, false
	}

	l := logger.FromContext(ctx).With(zap.Int64("team_id", sub.TeamID), zap.Int64("member_id", sub.MemberID))

	member, err := s.members.Get(ctx, sub.MemberID)
	if err != nil {
		logLookupFailure(l, "member", err)
		return nil, false
	}
	if member.TeamID != sub.TeamID {
		l.Warn("session member does not belong to team")
		return nil, false
	}

	team, err := s.teams.Get(ctx, sub.TeamID)
	if err != nil {
		logLookupFailure(l, "team", err)
		return nil, false
	}

	return &model.Identity{
		Team:   toModelTeam(team),
		Member: toModelMember(member),
	}, true
}

func logLookupFailure(l *zap.Logger, what string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		l.Debug("session "+what+" no longer exists")
		return
	}
	l.Error("failed to resolve session "+what, zap.Error(err))
}

func (s *SessionService) WithTeamRepo(r repository.TeamRepository) *SessionService {
	s.teams = r
	return s
}

func (s *SessionService) WithMemberRepo(r repository.MemberRepository) *SessionService {
	s.members = r
	return s
}
