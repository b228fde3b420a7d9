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
	"github.com/yakoovad/ctf-platform/internal/db"
)

type Solve struct {
	ID          int64     `db:"id"`
	TeamID      int64     `db:"team_id"`
	ChallengeID int64     `db:"challenge_id"`
	SolvedAt    time.Time `db:"solved_at"`
}

// SolveActivity is a solve joined with its team and challenge.
type SolveActivity struct {
	TeamName       string    `db:"team_name"`
	ChallengeTitle string    `db:"challenge_title"`
	Points         int       `db:"points"`
	SolvedAt       time.Time `db:"solved_at"`
}

type SolveRepository interface {
	// Create records a solve. A second solve of the same challenge by the
	// same team fails with ErrAlreadyExists.
	Create(ctx context.Context, solve *Solve) error
	Exists(ctx context.Context, teamID, challengeID int64) (bool, error)
	SolvedChallengeIDs(ctx context.Context, teamID int64) ([]int64, error)
	CountByChallenge(ctx context.Context) (map[int64]int, error)
	CountByTeam(ctx context.Context, teamID int64) (int, error)
	LastByTeam(ctx context.Context, teamID int64) (*SolveActivity, error)
	Recent(ctx context.Context, limit int) ([]*SolveActivity, error)
}

type pgxSolveRepository struct {
	pool *pgxpool.Pool
}

func NewPgxSolveRepository(pool *pgxpool.Pool) SolveRepository {
	return &pgxSolveRepository{pool: pool}
}

func (p *pgxSolveRepository) Create(ctx context.Context, solve *Solve) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("solve", "team_id", "challenge_id"),
		im.Values(psql.Arg(solve.TeamID), psql.Arg(solve.ChallengeID)),
		im.Returning("id", "solved_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return translatePgError(e.QueryRow(ctx, sql, args...).Scan(&solve.ID, &solve.SolvedAt))
}

func (p *pgxSolveRepository) Exists(ctx context.Context, teamID, challengeID int64) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(psql.Raw("count(*) > 0")),
		sm.From("solve"),
		sm.Where(
			psql.Quote("team_id").EQ(psql.Arg(teamID)).
				And(psql.Quote("challenge_id").EQ(psql.Arg(challengeID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err = e.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (p *pgxSolveRepository) SolvedChallengeIDs(ctx context.Context, teamID int64) ([]int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("challenge_id"),
		sm.From("solve"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
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

	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// CountByChallenge returns solve counts keyed by challenge id. Unsolved challenges are absent.
func (p *pgxSolveRepository) CountByChallenge(ctx context.Context) (map[int64]int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("challenge_id", psql.Raw("count(*)")),
		sm.From("solve"),
		sm.GroupBy("challenge_id"),
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

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			id    int64
			count int
		)
		if err = rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func (p *pgxSolveRepository) CountByTeam(ctx context.Context, teamID int64) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(psql.Raw("count(*)")),
		sm.From("solve"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err = e.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LastByTeam returns the team's most recent solve, or ErrNotFound if it has none.
func (p *pgxSolveRepository) LastByTeam(ctx context.Context, teamID int64) (*SolveActivity, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := activityQuery(1, sm.Where(psql.Quote("solve", "team_id").EQ(psql.Arg(teamID))))

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanActivity(e.QueryRow(ctx, sql, args...))
}

// Recent returns the latest solves across all teams, newest first.
func (p *pgxSolveRepository) Recent(ctx context.Context, limit int) ([]*SolveActivity, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := activityQuery(limit)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*SolveActivity, error) {
		return scanActivity(row)
	})
}

func activityQuery(limit int, mods ...bob.Mod[*dialect.SelectQuery]) bob.BaseQuery[*dialect.SelectQuery] {
	q := psql.Select(
		sm.Columns(
			psql.Quote("team", "name"),
			psql.Quote("challenge", "title"),
			psql.Quote("challenge", "points"),
			psql.Quote("solve", "solved_at"),
		),
		sm.From("solve"),
		sm.InnerJoin("team").On(psql.Quote("team", "id").EQ(psql.Quote("solve", "team_id"))),
		sm.InnerJoin("challenge").On(psql.Quote("challenge", "id").EQ(psql.Quote("solve", "challenge_id"))),
		sm.OrderBy(psql.Quote("solve", "solved_at")).Desc(),
		sm.OrderBy(psql.Quote("solve", "id")).Desc(),
		sm.Limit(psql.Arg(limit)),
	)
	q.Apply(mods...)
	return q
}

func scanActivity(row pgx.Row) (*SolveActivity, error) {
	a := &SolveActivity{}
	if err := row.Scan(&a.TeamName, &a.ChallengeTitle, &a.Points, &a.SolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}
