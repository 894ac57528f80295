package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/foxseedlab/golive/internal/repository"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const guildConfigKeyPrefix = "golive:guild-config:"

// CachedGuildConfigRepository is a read-through Redis cache in front of the
// guild config store. Redis failures fall back to the store.
type CachedGuildConfigRepository struct {
	next repository.GuildConfigRepository
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedGuildConfigRepository(next repository.GuildConfigRepository, rdb *redis.Client, ttl time.Duration) *CachedGuildConfigRepository {
	return &CachedGuildConfigRepository{next: next, rdb: rdb, ttl: ttl}
}

func guildConfigKey(guildID string) string {
	return guildConfigKeyPrefix + guildID
}

func (c *CachedGuildConfigRepository) GetGuildConfig(ctx context.Context, guildID string) (*repository.GuildReportConfig, error) {
	raw, err := c.rdb.Get(ctx, guildConfigKey(guildID)).Bytes()
	switch {
	case err == nil:
		var cfg repository.GuildReportConfig
		if err := json.Unmarshal(raw, &cfg); err == nil {
			return &cfg, nil
		}
		slog.Warn("discarding undecodable cached guild config", "guild_id", guildID)
	case !errors.Is(err, redis.Nil):
		slog.Warn("guild config cache read failed", "error", err, "guild_id", guildID)
	}

	cfg, err := c.next.GetGuildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(cfg); err == nil {
		if err := c.rdb.Set(ctx, guildConfigKey(guildID), b, c.ttl).Err(); err != nil {
			slog.Warn("guild config cache write failed", "error", err, "guild_id", guildID)
		}
	}
	return cfg, nil
}

func (c *CachedGuildConfigRepository) SaveGuildConfig(ctx context.Context, cfg repository.GuildReportConfig) error {
	if err := c.next.SaveGuildConfig(ctx, cfg); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, guildConfigKey(cfg.GuildID)).Err(); err != nil {
		slog.Warn("guild config cache invalidation failed", "error", err, "guild_id", cfg.GuildID)
	}
	return nil
}

func (c *CachedGuildConfigRepository) ListReportableGuilds(ctx context.Context) ([]repository.GuildReportConfig, error) {
	return c.next.ListReportableGuilds(ctx)
}
