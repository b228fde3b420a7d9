package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/ctf-platform/internal/db"
)

type Member struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Email    string `db:"email"`
	TeamID   int64  `db:"team_id"`
	IsLeader bool   `db:"is_leader"`
}

type MemberRepository interface {
	Create(ctx context.Context, member *Member) error
	Get(ctx context.Context, id int64) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
}

var memberColumns = []any{"id", "name", "email", "team_id", "is_leader"}

type pgxMemberRepository struct {
	pool *pgxpool.Pool
}

func NewPgxMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &pgxMemberRepository{pool: pool}
}

func scanMember(row pgx.Row) (*Member, error) {
	m := &Member{}
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.TeamID, &m.IsLeader); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// Create inserts a member and sets member.ID. Emails are stored lower-cased.
func (p *pgxMemberRepository) Create(ctx context.Context, member *Member) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	member.Email = strings.ToLower(member.Email)

	q := psql.Insert(
		im.Into("member", "name", "email", "team_id", "is_leader"),
		im.Values(psql.Arg(member.Name), psql.Arg(member.Email), psql.Arg(member.TeamID), psql.Arg(member.IsLeader)),
		im.Returning("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return translatePgError(e.QueryRow(ctx, sql, args...).Scan(&member.ID))
}

func (p *pgxMemberRepository) Get(ctx context.Context, id int64) (*Member, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(memberColumns...),
		sm.From("member"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanMember(e.QueryRow(ctx, sql, args...))
}

func (p *pgxMemberRepository) GetByEmail(ctx context.Context, email string) (*Member, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(memberColumns...),
		sm.From("member"),
		sm.Where(psql.Quote("email").EQ(psql.Arg(strings.ToLower(email)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanMember(e.QueryRow(ctx, sql, args...))
}
