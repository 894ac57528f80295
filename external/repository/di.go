package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foxseedlab/golive/internal/config"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.StoreDriver == config.StoreDriverMemory {
			slog.Warn("using in-memory store; sessions will not survive a restart")
			return NewMemoryRepository(cfg.DefaultTimezone), nil
		}
		p, err := connectPostgres(cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgresRepository(p, cfg.DefaultTimezone), nil
	})
	do.Provide(injector, func(i do.Injector) (repository.ActivityRepository, error) {
		return do.MustInvoke[repository.Repository](i), nil
	})
	do.Provide(injector, func(i do.Injector) (repository.GuildConfigRepository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[repository.Repository](i)
		if cfg.RedisURL == "" {
			return store, nil
		}
		rdb, err := connectRedis(cfg)
		if err != nil {
			return nil, err
		}
		return NewCachedGuildConfigRepository(store, rdb, cfg.GuildConfigCacheTTL), nil
	})
}

func startupBackoff(ctx context.Context, attempts int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

func connectPostgres(cfg *config.Config) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	attempt := 0
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to connect database: %w", err))
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.Warn("database ping failed", "error", err, "attempt", attempt)
			return fmt.Errorf("failed to ping database: %w: %v", repository.ErrStoreUnavailable, err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return backoff.Permanent(fmt.Errorf("failed to run migration: %w", err))
		}
		pool = p
		return nil
	}
	if err := backoff.Retry(op, startupBackoff(context.Background(), cfg.StoreConnectAttempts)); err != nil {
		return nil, err
	}
	return pool, nil
}

func connectRedis(cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		return rdb.Ping(ctx).Err()
	}
	if err := backoff.Retry(op, startupBackoff(context.Background(), cfg.StoreConnectAttempts)); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
