package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/arkind/identity-api/docs"
	"github.com/arkind/identity-api/internal/api"
	"github.com/arkind/identity-api/internal/api/handler"
	"github.com/arkind/identity-api/internal/core/ports"
	"github.com/arkind/identity-api/internal/core/service"
	"github.com/arkind/identity-api/internal/infrastructure/config"
	mongostore "github.com/arkind/identity-api/internal/infrastructure/db/mongo"
	pgstore "github.com/arkind/identity-api/internal/infrastructure/db/postgres"
	redisconn "github.com/arkind/identity-api/internal/infrastructure/db/redis"
	"github.com/arkind/identity-api/internal/infrastructure/queue"
	"github.com/arkind/identity-api/internal/infrastructure/rate"
	"github.com/arkind/identity-api/internal/token"
	"github.com/arkind/identity-api/pkg/logger"
)

// @title        Identity API
// @version      1.0
// @description  Account authentication and role based authorization service.
// @BasePath     /

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "identity-api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Env == "development"})
	log.Info().Str("env", cfg.Env).Str("driver", cfg.Store.Driver).Msg("starting identity-api")

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	limiter, redisCheck, err := buildLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}

	checks := []handler.DependencyCheck{store.check}
	if redisCheck != nil {
		checks = append(checks, *redisCheck)
	}

	dispatcher := queue.NewDispatcher(0, store.audits, log)
	dispatcher.Start(ctx)

	codec := token.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	sessions := service.NewSessionService(store.accounts, codec, log)

	e := api.NewRouter(api.Deps{
		Log:        log,
		Sessions:   sessions,
		Accounts:   store.accounts,
		Codec:      codec,
		Audit:      dispatcher,
		Limiter:    limiter,
		Checks:     checks,
		RefreshTTL: cfg.RefreshTokenTTL,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}

// storeBundle groups the persistence pieces a store driver provides.
type storeBundle struct {
	accounts ports.AccountRepository
	audits   ports.AuditRepository
	check    handler.DependencyCheck
	close    func()
}

func buildStore(ctx context.Context, cfg *config.Config) (*storeBundle, error) {
	switch cfg.Store.Driver {
	case "mongo":
		client, db, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		accounts := mongostore.NewAccountRepository(db)
		if err := accounts.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return &storeBundle{
			accounts: accounts,
			audits:   mongostore.NewAuditRepository(db),
			check: handler.DependencyCheck{Name: "mongodb", Check: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			}},
			close: func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
			},
		}, nil

	case "postgres":
		db, err := pgstore.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &storeBundle{
			accounts: pgstore.NewAccountRepository(db),
			audits:   pgstore.NewAuditRepository(db),
			check:    handler.DependencyCheck{Name: "postgres", Check: db.PingContext},
			close:    func() { _ = db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildLimiter picks the login throttle backend. Redis keeps counters shared
// across replicas; without it each process falls back to counting on its own.
func buildLimiter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (rate.Limiter, *handler.DependencyCheck, error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("redis not configured, using in-process login throttle")
		return rate.NewMemory(cfg.Throttle.LoginLimit, cfg.Throttle.LoginWindow), nil, nil
	}

	client, err := redisconn.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	check := handler.DependencyCheck{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
	return rate.NewRedis(client, cfg.Throttle.LoginLimit, cfg.Throttle.LoginWindow, "ratelimit:login"), &check, nil
}
