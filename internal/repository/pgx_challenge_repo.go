package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/ctf-platform/internal/db"
)

// Challenge is the stored challenge row, flag included. It never leaves the service layer.
type Challenge struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Category    string    `db:"category"`
	Points      int       `db:"points"`
	Flag        string    `db:"flag"`
	Files       []string  `db:"files"`
	CreatedAt   time.Time `db:"created_at"`
}

type ChallengeRepository interface {
	Get(ctx context.Context, id int64) (*Challenge, error)
	List(ctx context.Context) ([]*Challenge, error)
	Upsert(ctx context.Context, ch *Challenge) error
}

var challengeColumns = []any{"id", "title", "description", "category", "points", "flag", "files", "created_at"}

type pgxChallengeRepository struct {
	pool *pgxpool.Pool
}

func NewPgxChallengeRepository(pool *pgxpool.Pool) ChallengeRepository {
	return &pgxChallengeRepository{pool: pool}
}

func scanChallenge(row pgx.Row) (*Challenge, error) {
	ch := &Challenge{}
	if err := row.Scan(
		&ch.ID,
		&ch.Title,
		&ch.Description,
		&ch.Category,
		&ch.Points,
		&ch.Flag,
		&ch.Files,
		&ch.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ch, nil
}

func (p *pgxChallengeRepository) Get(ctx context.Context, id int64) (*Challenge, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(challengeColumns...),
		sm.From("challenge"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanChallenge(e.QueryRow(ctx, sql, args...))
}

// List returns all challenges ordered by category, then points.
func (p *pgxChallengeRepository) List(ctx context.Context) ([]*Challenge, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(challengeColumns...),
		sm.From("challenge"),
		sm.OrderBy("category").Asc(),
		sm.OrderBy("points").Asc(),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Challenge, error) {
		return scanChallenge(row)
	})
}

// Upsert inserts a challenge or updates the one with the same title, and sets ch.ID.
func (p *pgxChallengeRepository) Upsert(ctx context.Context, ch *Challenge) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	files := ch.Files
	if files == nil {
		files = []string{}
	}

	q := psql.Insert(
		im.Into("challenge", "title", "description", "category", "points", "flag", "files"),
		im.Values(
			psql.Arg(ch.Title),
			psql.Arg(ch.Description),
			psql.Arg(ch.Category),
			psql.Arg(ch.Points),
			psql.Arg(ch.Flag),
			psql.Arg(files),
		),
		im.OnConflict(psql.Quote("title")).DoUpdate(
			im.SetCol("description").ToArg(ch.Description),
			im.SetCol("category").ToArg(ch.Category),
			im.SetCol("points").ToArg(ch.Points),
			im.SetCol("flag").ToArg(ch.Flag),
			im.SetCol("files").ToArg(files),
		),
		im.Returning("id", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return translatePgError(e.QueryRow(ctx, sql, args...).Scan(&ch.ID, &ch.CreatedAt))
}
