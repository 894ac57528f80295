package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
)

// ErrStoreUnavailable marks failures where the backing store could not be
// reached or timed out. Callers drop the triggering event instead of crashing.
var ErrStoreUnavailable = errors.New("store unavailable")

// UpdateFunc receives the current aggregate, or nil when none exists, and
// returns the aggregate to persist. Returning nil leaves the store untouched.
type UpdateFunc func(current *activity.UserGuildActivity) (*activity.UserGuildActivity, error)

type ActivityRepository interface {
	// Update is a single atomic read-modify-write of one aggregate. Concurrent
	// updates of the same (userID, guildID) are serialized by the store.
	Update(ctx context.Context, userID, guildID string, fn UpdateFunc) (*activity.UserGuildActivity, error)
	GetActivity(ctx context.Context, userID, guildID string) (*activity.UserGuildActivity, error)
	ListWithOpenSession(ctx context.Context) ([]*activity.UserGuildActivity, error)
	// ListOverlapping returns every aggregate of the guild holding at least one
	// session that overlaps [start, end).
	ListOverlapping(ctx context.Context, guildID string, start, end time.Time) ([]*activity.UserGuildActivity, error)
	ListByGuild(ctx context.Context, guildID string) ([]*activity.UserGuildActivity, error)
}

type GuildConfigRepository interface {
	// GetGuildConfig returns the stored config or a default one for unknown guilds.
	GetGuildConfig(ctx context.Context, guildID string) (*GuildReportConfig, error)
	SaveGuildConfig(ctx context.Context, cfg GuildReportConfig) error
	// ListReportableGuilds returns configs with a notification channel and at
	// least one report kind enabled.
	ListReportableGuilds(ctx context.Context) ([]GuildReportConfig, error)
}

type Repository interface {
	ActivityRepository
	GuildConfigRepository
	Ping(ctx context.Context) error
	Close()
}
