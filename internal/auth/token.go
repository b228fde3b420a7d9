package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultTokenTTL = 12 * time.Hour

type TokenClaims struct {
	jwt.RegisteredClaims
}

// Subject is the identity a session token is bound to.
type Subject struct {
	TeamID   int64
	MemberID int64
}

func (s Subject) String() string {
	return fmt.Sprintf("%d:%d", s.TeamID, s.MemberID)
}

func ParseSubject(sub string) (Subject, error) {
	teamPart, memberPart, ok := strings.Cut(sub, ":")
	if !ok {
		return Subject{}, ErrInvalidSubject
	}

	teamID, err := strconv.ParseInt(teamPart, 10, 64)
	if err != nil || teamID <= 0 {
		return Subject{}, errors.Wrap(ErrInvalidSubject, "team id")
	}

	memberID, err := strconv.ParseInt(memberPart, 10, 64)
	if err != nil || memberID <= 0 {
		return Subject{}, errors.Wrap(ErrInvalidSubject, "member id")
	}

	return Subject{TeamID: teamID, MemberID: memberID}, nil
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	logger *zap.Logger
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: zap.NewNop(),
	}
}

func (m *TokenManager) WithLogger(l *zap.Logger) *TokenManager {
	m.logger = l
	return m
}

func (m *TokenManager) WithNow(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) Issue(teamID, memberID int64) (string, error) {
	now := m.now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   Subject{TeamID: teamID, MemberID: memberID}.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) Verify(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			alg, _ := token.Header["alg"].(string)
			return nil, errors.Wrap(ErrInvalidSigningMethod, alg)
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// Resolve never fails loudly: any malformed, expired or tampered token yields false.
func (m *TokenManager) Resolve(tokenString string) (*Subject, bool) {
	claims, err := m.Verify(tokenString)
	if err != nil {
		m.logger.Debug("could not verify token", zap.Error(err))
		return nil, false
	}

	sub, err := ParseSubject(claims.Subject)
	if err != nil {
		m.logger.Debug("token carries invalid subject", zap.String("sub", claims.Subject), zap.Error(err))
		return nil, false
	}

	return &sub, true
}
