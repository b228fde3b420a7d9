package main

import (
	"context"
	"flag"
	"os"

	"github.com/yakoovad/ctf-platform/internal/config"
	"github.com/yakoovad/ctf-platform/internal/db"
	"github.com/yakoovad/ctf-platform/internal/repository"
	"github.com/yakoovad/ctf-platform/internal/seed"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	fs := flag.NewFlagSet("seeder", flag.ExitOnError)
	dir := fs.String("dir", "challenges/ctfs", "directory of challenge folders")
	_ = fs.Parse(os.Args[1:])

	// The remaining arguments are the usual server flags, e.g. -d for the DSN.
	cfg, err := config.Load(fs.Args())
	if err != nil {
		panic(err)
	}

	l, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer l.Sync()

	ctx := logger.WithLogger(context.Background(), l)

	if cfg.MigrateOnStart {
		if err = db.Migrate(ctx, cfg.DatabaseDSN); err != nil {
			l.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		l.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	seeder := seed.NewSeeder(db.NewPgxTransactor(pool), repository.NewPgxChallengeRepository(pool))

	n, err := seeder.Seed(ctx, *dir)
	if err != nil {
		l.Fatal("failed to seed challenges", zap.Error(err))
	}

	l.Info("seeding finished", zap.Int("challenges", n), zap.String("dir", *dir))
}
