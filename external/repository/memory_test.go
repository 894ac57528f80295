package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/repository"
)

var base = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func startAt(t *testing.T, repo *MemoryRepository, userID, guildID, channelID string, at time.Time) {
	t.Helper()
	_, err := repo.Update(context.Background(), userID, guildID, func(a *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
		if a == nil {
			a = activity.New(userID, guildID)
		}
		a.StartSession(at, channelID, channelID)
		return a, nil
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
}

func endAt(t *testing.T, repo *MemoryRepository, userID, guildID string, at time.Time) {
	t.Helper()
	_, err := repo.Update(context.Background(), userID, guildID, func(a *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
		if a == nil || a.EndSession(at) == nil {
			return nil, nil
		}
		return a, nil
	})
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
}

func TestMemoryRepository_UpdateNilResultLeavesStoreUntouched(t *testing.T) {
	repo := NewMemoryRepository("UTC")
	got, err := repo.Update(context.Background(), "u1", "g1", func(a *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
		if a != nil {
			t.Fatal("expected nil aggregate for unknown key")
		}
		return nil, nil
	})
	if err != nil || got != nil {
		t.Fatalf("expected nil result, got %+v err=%v", got, err)
	}
	stored, _ := repo.GetActivity(context.Background(), "u1", "g1")
	if stored != nil {
		t.Fatal("expected nothing stored")
	}
}

func TestMemoryRepository_UpdateErrorDiscardsMutation(t *testing.T) {
	repo := NewMemoryRepository("UTC")
	startAt(t, repo, "u1", "g1", "vc-1", base)

	boom := errors.New("boom")
	_, err := repo.Update(context.Background(), "u1", "g1", func(a *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
		a.EndSession(base.Add(time.Hour))
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	stored, _ := repo.GetActivity(context.Background(), "u1", "g1")
	if !stored.HasOpenSession() {
		t.Fatal("expected failed update to leave the session open")
	}
}

func TestMemoryRepository_ConcurrentStartsKeepOneOpenSession(t *testing.T) {
	repo := NewMemoryRepository("UTC")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := base.Add(time.Duration(i) * time.Second)
			_, err := repo.Update(context.Background(), "u1", "g1", func(a *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
				if a == nil {
					a = activity.New("u1", "g1")
				}
				a.StartSession(at, "vc-1", "vc-1")
				return a, nil
			})
			if err != nil {
				t.Errorf("start failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stored, _ := repo.GetActivity(context.Background(), "u1", "g1")
	open := 0
	for _, s := range stored.Sessions {
		if s.IsOpen() {
			open++
		}
	}
	if len(stored.Sessions) != 20 || open != 1 {
		t.Fatalf("expected 20 sessions with one open, got %d sessions and %d open", len(stored.Sessions), open)
	}
}

func TestMemoryRepository_ListWithOpenSession(t *testing.T) {
	repo := NewMemoryRepository("UTC")
	startAt(t, repo, "u1", "g1", "vc-1", base)
	startAt(t, repo, "u2", "g1", "vc-1", base)
	endAt(t, repo, "u2", "g1", base.Add(time.Minute))
	startAt(t, repo, "u3", "g2", "vc-9", base)

	list, err := repo.ListWithOpenSession(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].UserID != "u1" || list[1].UserID != "u3" {
		t.Fatalf("unexpected open activities: %+v", list)
	}
}

func TestMemoryRepository_ListOverlappingUsesHalfOpenWindow(t *testing.T) {
	repo := NewMemoryRepository("UTC")
	startAt(t, repo, "before", "g1", "vc-1", base.Add(-2*time.Hour))
	endAt(t, repo, "before", "g1", base)
	startAt(t, repo, "inside", "g1", "vc-1", base.Add(10*time.Minute))
	endAt(t, repo, "inside", "g1", base.Add(20*time.Minute))
	startAt(t, repo, "spanning", "g1", "vc-1", base.Add(-time.Hour))
	startAt(t, repo, "after", "g1", "vc-1", base.Add(time.Hour))
	startAt(t, repo, "other-guild", "g2", "vc-1", base.Add(10*time.Minute))

	list, err := repo.ListOverlapping(context.Background(), "g1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := map[string]bool{}
	for _, a := range list {
		got[a.UserID] = true
	}
	if len(got) != 2 || !got["inside"] || !got["spanning"] {
		t.Fatalf("unexpected overlapping users: %v", got)
	}
}

func TestMemoryRepository_GuildConfigDefaultsAndValidation(t *testing.T) {
	repo := NewMemoryRepository("Asia/Tokyo")
	ctx := context.Background()

	cfg, err := repo.GetGuildConfig(ctx, "100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timezone != "Asia/Tokyo" || cfg.HourlyDue() || cfg.DailyDue() {
		t.Fatalf("unexpected default config: %+v", cfg)
	}

	bad := repository.DefaultGuildReportConfig("100", "Not/AZone")
	if err := repo.SaveGuildConfig(ctx, bad); !errors.Is(err, repository.ErrInvalidTimezone) {
		t.Fatalf("expected invalid timezone, got %v", err)
	}

	good := repository.GuildReportConfig{GuildID: "100", NotificationChannelID: "200", DailyReportEnabled: true, Timezone: "Europe/Berlin"}
	if err := repo.SaveGuildConfig(ctx, good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	silent := repository.GuildReportConfig{GuildID: "101", NotificationChannelID: "201", Timezone: "UTC"}
	if err := repo.SaveGuildConfig(ctx, silent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, _ := repo.ListReportableGuilds(ctx)
	if len(list) != 1 || list[0].GuildID != "100" {
		t.Fatalf("unexpected reportable guilds: %+v", list)
	}
}
