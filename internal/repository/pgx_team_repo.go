package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/ctf-platform/internal/db"
)

type Team struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	ContactNo    string    `db:"contact_no"`
	PasswordHash string    `db:"password_hash"`
	Score        int       `db:"score"`
	CreatedAt    time.Time `db:"created_at"`
}

type TeamPatch struct {
	ID           int64   `db:"id"`
	Name         *string `db:"name"`
	PasswordHash *string `db:"password_hash"`
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, id int64) (*Team, error)
	Patch(ctx context.Context, patch *TeamPatch) (*Team, error)
	AddScore(ctx context.Context, id int64, points int) (int, error)
	Leaderboard(ctx context.Context) ([]*Team, error)
	GetTeamMembers(ctx context.Context, id int64) ([]*Member, error)
}

var teamColumns = []any{"id", "name", "contact_no", "password_hash", "score", "created_at"}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func scanTeam(row pgx.Row) (*Team, error) {
	team := &Team{}
	if err := row.Scan(
		&team.ID,
		&team.Name,
		&team.ContactNo,
		&team.PasswordHash,
		&team.Score,
		&team.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

// Create inserts a team and fills team.ID, team.Score and team.CreatedAt.
func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team", "name", "contact_no", "password_hash"),
		im.Values(psql.Arg(team.Name), psql.Arg(team.ContactNo), psql.Arg(team.PasswordHash)),
		im.Returning("id", "score", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&team.ID, &team.Score, &team.CreatedAt)
	return translatePgError(err)
}

func (p *pgxTeamRepository) Get(ctx context.Context, id int64) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns...),
		sm.From("team"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanTeam(e.QueryRow(ctx, sql, args...))
}

func (p *pgxTeamRepository) Patch(ctx context.Context, patch *TeamPatch) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 2)
	if patch.Name != nil {
		sets = append(sets, um.SetCol("name").ToArg(*patch.Name))
	}
	if patch.PasswordHash != nil {
		sets = append(sets, um.SetCol("password_hash").ToArg(*patch.PasswordHash))
	}
	if len(sets) == 0 {
		return p.Get(ctx, patch.ID)
	}

	q := psql.Update(
		um.Table("team"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(teamColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, translatePgError(err)
	}
	return team, nil
}

// AddScore increments the score in place and returns the new total.
func (p *pgxTeamRepository) AddScore(ctx context.Context, id int64, points int) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := addScoreQuery(id, points).Build(ctx)
	if err != nil {
		return 0, err
	}

	var score int
	if err = e.QueryRow(ctx, sql, args...).Scan(&score); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return score, nil
}

// Leaderboard returns every team ordered by score, earliest registration first on ties.
func (p *pgxTeamRepository) Leaderboard(ctx context.Context) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := leaderboardQuery().Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Team, error) {
		return scanTeam(row)
	})
}

// addScoreQuery adds points inside the UPDATE itself so concurrent credits never lose a write.
func addScoreQuery(id int64, points int) bob.BaseQuery[*dialect.UpdateQuery] {
	return psql.Update(
		um.Table("team"),
		um.SetCol("score").To(psql.Raw("score + ?", points)),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.Returning("score"),
	)
}

func leaderboardQuery() bob.BaseQuery[*dialect.SelectQuery] {
	return psql.Select(
		sm.Columns(teamColumns...),
		sm.From("team"),
		sm.OrderBy("score").Desc(),
		sm.OrderBy("created_at").Asc(),
		sm.OrderBy("id").Asc(),
	)
}

func (p *pgxTeamRepository) GetTeamMembers(ctx context.Context, id int64) ([]*Member, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(memberColumns...),
		sm.From("member"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(id))),
		sm.OrderBy("is_leader").Desc(),
		sm.OrderBy("id").Asc(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Member, error) {
		return scanMember(row)
	})
}
