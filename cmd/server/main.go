package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/ctf-platform/internal/api"
	"github.com/yakoovad/ctf-platform/internal/auth"
	"github.com/yakoovad/ctf-platform/internal/cache"
	"github.com/yakoovad/ctf-platform/internal/config"
	"github.com/yakoovad/ctf-platform/internal/contest"
	"github.com/yakoovad/ctf-platform/internal/db"
	"github.com/yakoovad/ctf-platform/internal/files"
	"github.com/yakoovad/ctf-platform/internal/repository"
	"github.com/yakoovad/ctf-platform/internal/service"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		panic(err)
	}

	l, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer l.Sync()

	if err = run(cfg, l); err != nil {
		l.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, l *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, l)

	l.Info("starting application",
		zap.String("version", version),
		zap.String("phase", string(cfg.Schedule.PhaseAt(time.Now()))),
	)

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.DatabaseDSN); err != nil {
			return errors.Wrap(err, "migrate database")
		}
		l.Info("database migrated")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	l.Info("database connection established")

	checks := []health.Config{api.PingCheck("postgres", pool.Ping)}

	scoreboardCache := cache.NewNopScoreboard()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return errors.Wrap(err, "connect to redis")
		}

		l.Info("redis connection established", zap.String("addr", cfg.RedisAddr))

		scoreboardCache = cache.NewRedisScoreboard(rdb, cfg.ScoreboardCacheTTL)
		checks = append(checks, api.PingCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	origin, err := files.New(ctx, cfg.Files)
	if err != nil {
		return errors.Wrap(err, "create file origin")
	}

	healthChecker, err := api.NewHealthChecker(version, checks...)
	if err != nil {
		return err
	}

	transactor := db.NewPgxTransactor(pool)
	clock := contest.NewClock(cfg.Schedule)
	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL).WithLogger(l)

	teamRepo := repository.NewPgxTeamRepository(pool)
	memberRepo := repository.NewPgxMemberRepository(pool)
	challengeRepo := repository.NewPgxChallengeRepository(pool)
	solveRepo := repository.NewPgxSolveRepository(pool)

	team := service.NewTeamService(transactor, clock, tokens).WithEmailDomain(cfg.EmailDomain).WithTeamRepo(teamRepo).WithMemberRepo(memberRepo).WithSolveRepo(solveRepo).WithScoreboardCache(scoreboardCache)
	challenges := service.NewChallengeService(transactor, clock).WithChallengeRepo(challengeRepo).WithSolveRepo(solveRepo).WithTeamRepo(teamRepo).WithScoreboardCache(scoreboardCache)
	scoreboard := service.NewScoreboardService().WithTeamRepo(teamRepo).WithSolveRepo(solveRepo).WithScoreboardCache(scoreboardCache)
	sessions := service.NewSessionService(tokens).WithTeamRepo(teamRepo).WithMemberRepo(memberRepo)

	validator, err := api.NewValidator(cfg.EmailDomain)
	if err != nil {
		return errors.Wrap(err, "create validator")
	}

	e := echo.New()
	e.HideBanner = true

	handler := api.NewHandler(l, clock).
		WithHealthChecker(healthChecker).
		WithValidator(validator).
		WithCookie(api.CookieConfig{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure}).
		WithTeamService(team).
		WithChallengeService(challenges).
		WithScoreboardService(scoreboard).
		WithSessionService(sessions).
		WithFileOrigin(origin)

	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		l.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		return errors.Wrap(err, "start server")
	case <-ctx.Done():
	}

	l.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown server")
	}

	l.Info("server stopped")
	return nil
}
