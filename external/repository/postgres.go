package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/metrics"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool            *pgxpool.Pool
	defaultTimezone string
}

func NewPostgresRepository(pool *pgxpool.Pool, defaultTimezone string) *PostgresRepository {
	return &PostgresRepository{pool: pool, defaultTimezone: defaultTimezone}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Update(ctx context.Context, userID, guildID string, fn repository.UpdateFunc) (*activity.UserGuildActivity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin update", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Serializes writers of the same aggregate, including the first insert
	// where there is no row to lock yet.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, userID, guildID); err != nil {
		return nil, storeError("lock activity", err)
	}

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT document FROM user_guild_activities WHERE user_id = $1 AND guild_id = $2 FOR UPDATE`,
		userID, guildID).Scan(&raw)
	var current *activity.UserGuildActivity
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, storeError("load activity", err)
	default:
		current, err = decodeActivity(raw)
		if err != nil {
			return nil, err
		}
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode activity: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_guild_activities (user_id, guild_id, document, has_open_session, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, guild_id) DO UPDATE
		 SET document = EXCLUDED.document, has_open_session = EXCLUDED.has_open_session, updated_at = NOW()`,
		userID, guildID, doc, next.HasOpenSession()); err != nil {
		return nil, storeError("save activity", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit activity", err)
	}
	return next, nil
}

func (r *PostgresRepository) GetActivity(ctx context.Context, userID, guildID string) (*activity.UserGuildActivity, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT document FROM user_guild_activities WHERE user_id = $1 AND guild_id = $2`,
		userID, guildID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeError("get activity", err)
	}
	return decodeActivity(raw)
}

func (r *PostgresRepository) ListWithOpenSession(ctx context.Context) ([]*activity.UserGuildActivity, error) {
	return r.queryActivities(ctx, "list open activities",
		`SELECT document FROM user_guild_activities WHERE has_open_session ORDER BY guild_id, user_id`)
}

func (r *PostgresRepository) ListOverlapping(ctx context.Context, guildID string, start, end time.Time) ([]*activity.UserGuildActivity, error) {
	return r.queryActivities(ctx, "list overlapping activities",
		`SELECT a.document FROM user_guild_activities a
		 WHERE a.guild_id = $1
		   AND EXISTS (
		     SELECT 1 FROM jsonb_array_elements(a.document->'sessions') s
		     WHERE (s->>'start_time')::timestamptz < $3
		       AND (s->>'end_time' IS NULL OR (s->>'end_time')::timestamptz > $2)
		   )
		 ORDER BY a.user_id`,
		guildID, start.UTC(), end.UTC())
}

func (r *PostgresRepository) ListByGuild(ctx context.Context, guildID string) ([]*activity.UserGuildActivity, error) {
	return r.queryActivities(ctx, "list guild activities",
		`SELECT document FROM user_guild_activities WHERE guild_id = $1 ORDER BY user_id`, guildID)
}

func (r *PostgresRepository) queryActivities(ctx context.Context, op, sql string, args ...any) ([]*activity.UserGuildActivity, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()
	var list []*activity.UserGuildActivity
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, storeError(op, err)
		}
		a, err := decodeActivity(raw)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return list, nil
}

func (r *PostgresRepository) GetGuildConfig(ctx context.Context, guildID string) (*repository.GuildReportConfig, error) {
	cfg := repository.GuildReportConfig{GuildID: guildID}
	err := r.pool.QueryRow(ctx,
		`SELECT notification_channel_id, hourly_report_enabled, daily_report_enabled, timezone
		 FROM guild_report_configs WHERE guild_id = $1`,
		guildID).Scan(&cfg.NotificationChannelID, &cfg.HourlyReportEnabled, &cfg.DailyReportEnabled, &cfg.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			def := repository.DefaultGuildReportConfig(guildID, r.defaultTimezone)
			return &def, nil
		}
		return nil, storeError("get guild config", err)
	}
	return &cfg, nil
}

func (r *PostgresRepository) SaveGuildConfig(ctx context.Context, cfg repository.GuildReportConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO guild_report_configs (guild_id, notification_channel_id, hourly_report_enabled, daily_report_enabled, timezone, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (guild_id) DO UPDATE
		 SET notification_channel_id = EXCLUDED.notification_channel_id,
		     hourly_report_enabled = EXCLUDED.hourly_report_enabled,
		     daily_report_enabled = EXCLUDED.daily_report_enabled,
		     timezone = EXCLUDED.timezone,
		     updated_at = NOW()`,
		cfg.GuildID, cfg.NotificationChannelID, cfg.HourlyReportEnabled, cfg.DailyReportEnabled, cfg.Timezone)
	if err != nil {
		return storeError("save guild config", err)
	}
	return nil
}

func (r *PostgresRepository) ListReportableGuilds(ctx context.Context) ([]repository.GuildReportConfig, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT guild_id, notification_channel_id, hourly_report_enabled, daily_report_enabled, timezone
		 FROM guild_report_configs
		 WHERE notification_channel_id <> '' AND (hourly_report_enabled OR daily_report_enabled)
		 ORDER BY guild_id`)
	if err != nil {
		return nil, storeError("list reportable guilds", err)
	}
	defer rows.Close()
	var list []repository.GuildReportConfig
	for rows.Next() {
		var cfg repository.GuildReportConfig
		if err := rows.Scan(&cfg.GuildID, &cfg.NotificationChannelID, &cfg.HourlyReportEnabled, &cfg.DailyReportEnabled, &cfg.Timezone); err != nil {
			return nil, storeError("list reportable guilds", err)
		}
		list = append(list, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list reportable guilds", err)
	}
	return list, nil
}

func decodeActivity(raw []byte) (*activity.UserGuildActivity, error) {
	var a activity.UserGuildActivity
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return &a, nil
}

func storeError(op string, err error) error {
	if isUnavailable(err) {
		metrics.StoreErrors.WithLabelValues(op, "unavailable").Inc()
		return fmt.Errorf("%s: %w: %v", op, repository.ErrStoreUnavailable, err)
	}
	metrics.StoreErrors.WithLabelValues(op, "query").Inc()
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
