package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_guild_activities (
		user_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		document JSONB NOT NULL,
		has_open_session BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, guild_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_guild_activities_open ON user_guild_activities (guild_id) WHERE has_open_session`,
	`CREATE INDEX IF NOT EXISTS idx_user_guild_activities_guild ON user_guild_activities (guild_id)`,
	`CREATE TABLE IF NOT EXISTS guild_report_configs (
		guild_id TEXT PRIMARY KEY,
		notification_channel_id TEXT NOT NULL DEFAULT '',
		hourly_report_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		daily_report_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
