package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/repository"
)

// MemoryRepository keeps aggregates in process memory. It backs
// STORE_DRIVER=memory and the package tests.
type MemoryRepository struct {
	mu              sync.RWMutex
	activities      map[string]*activity.UserGuildActivity
	configs         map[string]repository.GuildReportConfig
	defaultTimezone string
}

func NewMemoryRepository(defaultTimezone string) *MemoryRepository {
	return &MemoryRepository{
		activities:      make(map[string]*activity.UserGuildActivity),
		configs:         make(map[string]repository.GuildReportConfig),
		defaultTimezone: defaultTimezone,
	}
}

func activityKey(userID, guildID string) string {
	return guildID + ":" + userID
}

func (r *MemoryRepository) Update(_ context.Context, userID, guildID string, fn repository.UpdateFunc) (*activity.UserGuildActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := activityKey(userID, guildID)
	next, err := fn(r.activities[key].Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return r.activities[key].Clone(), nil
	}
	r.activities[key] = next.Clone()
	return next, nil
}

func (r *MemoryRepository) GetActivity(_ context.Context, userID, guildID string) (*activity.UserGuildActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activities[activityKey(userID, guildID)].Clone(), nil
}

func (r *MemoryRepository) ListWithOpenSession(_ context.Context) ([]*activity.UserGuildActivity, error) {
	return r.list(func(a *activity.UserGuildActivity) bool {
		return a.HasOpenSession()
	}), nil
}

func (r *MemoryRepository) ListOverlapping(_ context.Context, guildID string, start, end time.Time) ([]*activity.UserGuildActivity, error) {
	return r.list(func(a *activity.UserGuildActivity) bool {
		if a.GuildID != guildID {
			return false
		}
		for i := range a.Sessions {
			if a.Sessions[i].Overlaps(start, end) {
				return true
			}
		}
		return false
	}), nil
}

func (r *MemoryRepository) ListByGuild(_ context.Context, guildID string) ([]*activity.UserGuildActivity, error) {
	return r.list(func(a *activity.UserGuildActivity) bool {
		return a.GuildID == guildID
	}), nil
}

func (r *MemoryRepository) list(match func(*activity.UserGuildActivity) bool) []*activity.UserGuildActivity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*activity.UserGuildActivity, 0)
	for _, a := range r.activities {
		if match(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GuildID != out[j].GuildID {
			return out[i].GuildID < out[j].GuildID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (r *MemoryRepository) GetGuildConfig(_ context.Context, guildID string) (*repository.GuildReportConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[guildID]
	if !ok {
		cfg = repository.DefaultGuildReportConfig(guildID, r.defaultTimezone)
	}
	return &cfg, nil
}

func (r *MemoryRepository) SaveGuildConfig(_ context.Context, cfg repository.GuildReportConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.GuildID] = cfg
	return nil
}

func (r *MemoryRepository) ListReportableGuilds(_ context.Context) ([]repository.GuildReportConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.GuildReportConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		if cfg.HourlyDue() || cfg.DailyDue() {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() {}
