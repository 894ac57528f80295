package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/repository"
)

type fakeRepository struct {
	mu         sync.Mutex
	activities map[string]*activity.UserGuildActivity
	updateErr  error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{activities: make(map[string]*activity.UserGuildActivity)}
}

func (r *fakeRepository) Update(_ context.Context, userID, guildID string, fn repository.UpdateFunc) (*activity.UserGuildActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	key := guildID + ":" + userID
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

func (r *fakeRepository) GetActivity(_ context.Context, userID, guildID string) (*activity.UserGuildActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activities[guildID+":"+userID].Clone(), nil
}

func (r *fakeRepository) ListWithOpenSession(context.Context) ([]*activity.UserGuildActivity, error) {
	return nil, nil
}

func (r *fakeRepository) ListOverlapping(context.Context, string, time.Time, time.Time) ([]*activity.UserGuildActivity, error) {
	return nil, nil
}

func (r *fakeRepository) ListByGuild(context.Context, string) ([]*activity.UserGuildActivity, error) {
	return nil, nil
}

type mockNotifier struct {
	mu       sync.Mutex
	starts   []StartNotice
	ends     []EndNotice
	startErr error
	nextRef  *activity.NotificationRef
}

func (m *mockNotifier) NotifyStart(_ context.Context, notice StartNotice) (*activity.NotificationRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, notice)
	if m.startErr != nil {
		return nil, m.startErr
	}
	return m.nextRef, nil
}

func (m *mockNotifier) NotifyEnd(_ context.Context, notice EndNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ends = append(m.ends, notice)
	return nil
}

func (m *mockNotifier) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.starts), len(m.ends)
}

func (m *mockNotifier) lastEnd() EndNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ends[len(m.ends)-1]
}

func newTestTracker(repo *fakeRepository, n *mockNotifier, now *time.Time) *Tracker {
	tr := NewTracker(repo, n)
	tr.now = func() time.Time { return *now }
	return tr
}

var testMember = Member{UserID: "user-1", Username: "alice", GuildID: "guild-1", GuildName: "guild"}

func TestStartSession_DuplicateStartKeepsOneOpen(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(newFakeRepository(), &mockNotifier{}, &now)
	defer tr.Close()

	if _, err := tr.StartSession(context.Background(), testMember, "vc-1", "stage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(5 * time.Minute)
	started, err := tr.StartSession(context.Background(), testMember, "vc-1", "stage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Superseded == nil || started.Superseded.DurationMinutes != 5 {
		t.Fatalf("expected superseded 5 minute session, got %+v", started.Superseded)
	}
	open := 0
	for _, s := range started.Activity.Sessions {
		if s.IsOpen() {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected one open session, got %d", open)
	}
}

func TestEndSession_ReturnsNilWithoutActivity(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	tr := newTestTracker(repo, &mockNotifier{}, &now)
	defer tr.Close()

	closed, err := tr.EndSession(context.Background(), "user-1", "guild-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != nil {
		t.Fatalf("expected nil, got %+v", closed)
	}
	if len(repo.activities) != 0 {
		t.Fatal("expected no aggregate to be created")
	}
}

func TestMarkInterrupted_CountsSessionButNotMinutes(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(newFakeRepository(), &mockNotifier{}, &now)
	defer tr.Close()

	if _, err := tr.StartSession(context.Background(), testMember, "vc-1", "stage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(3 * time.Hour)
	closed, err := tr.MarkInterrupted(context.Background(), testMember.UserID, testMember.GuildID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closed.Session.Interrupted {
		t.Fatal("expected interrupted snapshot")
	}
	if closed.Activity.TotalSessions != 1 || closed.Activity.TotalMinutes != 0 {
		t.Fatalf("expected 1 session and 0 minutes, got %d and %d", closed.Activity.TotalSessions, closed.Activity.TotalMinutes)
	}
}

func TestHandleVoiceStateUpdate_ThreadsEndNoticeToStartNotice(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	n := &mockNotifier{nextRef: &activity.NotificationRef{MessageID: "msg-1", ChannelID: "text-1"}}
	tr := newTestTracker(repo, n, &now)

	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1", Username: "alice",
		BeforeKnown: true, BeforeChannelID: "vc-1",
		AfterChannelID: "vc-1", AfterChannelName: "stage", IsStreaming: true,
	})
	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1", Username: "alice",
		BeforeKnown: true, BeforeChannelID: "vc-1", WasStreaming: true,
		AfterChannelID: "vc-1",
	})
	tr.Close()

	starts, ends := n.counts()
	if starts != 1 || ends != 1 {
		t.Fatalf("expected 1 start and 1 end notice, got %d and %d", starts, ends)
	}
	end := n.lastEnd()
	if end.Closed.NotificationRef == nil || end.Closed.NotificationRef.MessageID != "msg-1" {
		t.Fatalf("expected end notice to carry start reference, got %+v", end.Closed.NotificationRef)
	}
	a, _ := repo.GetActivity(context.Background(), "user-1", "guild-1")
	if a.HasOpenSession() {
		t.Fatal("expected session to be closed")
	}
}

func TestHandleVoiceStateUpdate_ChannelSwitchRecordsTwoSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	n := &mockNotifier{}
	tr := newTestTracker(repo, n, &now)

	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1",
		AfterChannelID: "vc-1", IsStreaming: true,
	})
	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1",
		BeforeKnown: true, BeforeChannelID: "vc-1", WasStreaming: true,
		AfterChannelID: "vc-2", IsStreaming: true,
	})
	tr.Close()

	a, _ := repo.GetActivity(context.Background(), "user-1", "guild-1")
	if len(a.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(a.Sessions))
	}
	if a.Sessions[0].IsOpen() || a.Sessions[0].ChannelID != "vc-1" {
		t.Fatalf("expected closed vc-1 session, got %+v", a.Sessions[0])
	}
	if !a.Sessions[1].IsOpen() || a.Sessions[1].ChannelID != "vc-2" {
		t.Fatalf("expected open vc-2 session, got %+v", a.Sessions[1])
	}
	if _, ends := n.counts(); ends != 1 {
		t.Fatalf("expected 1 end notice, got %d", ends)
	}
}

func TestHandleVoiceStateUpdate_IgnoresBots(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	tr := newTestTracker(repo, &mockNotifier{}, &now)

	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "bot-1", UserIsBot: true,
		AfterChannelID: "vc-1", IsStreaming: true,
	})
	tr.Close()

	if len(repo.activities) != 0 {
		t.Fatal("expected bot event to be ignored")
	}
}

func TestHandleVoiceStateUpdate_UnknownPriorStateClosesOpenSession(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	tr := newTestTracker(repo, &mockNotifier{}, &now)
	if _, err := tr.StartSession(context.Background(), testMember, "vc-1", "stage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(20 * time.Minute)
	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{GuildID: "guild-1", UserID: "user-1"})
	tr.Close()

	a, _ := repo.GetActivity(context.Background(), "user-1", "guild-1")
	if a.HasOpenSession() {
		t.Fatal("expected open session to be closed")
	}
	if a.TotalMinutes != 20 {
		t.Fatalf("expected 20 minutes, got %d", a.TotalMinutes)
	}
}

func TestHandleVoiceStateUpdate_NotifierFailureKeepsSession(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	n := &mockNotifier{startErr: errors.New("missing permissions")}
	tr := newTestTracker(repo, n, &now)

	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1",
		AfterChannelID: "vc-1", IsStreaming: true,
	})
	tr.Close()

	a, _ := repo.GetActivity(context.Background(), "user-1", "guild-1")
	if a == nil || !a.HasOpenSession() {
		t.Fatal("expected session to be recorded despite notifier failure")
	}
	if a.Sessions[0].NotificationRef != nil {
		t.Fatal("expected no notification reference")
	}
}

func TestHandleVoiceStateUpdate_StoreFailureDropsEvent(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.updateErr = repository.ErrStoreUnavailable
	n := &mockNotifier{}
	tr := newTestTracker(repo, n, &now)

	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1",
		AfterChannelID: "vc-1", IsStreaming: true,
	})
	tr.Close()

	if starts, _ := n.counts(); starts != 0 {
		t.Fatalf("expected no start notice, got %d", starts)
	}
}

func TestHandleVoiceStateUpdate_UnknownPriorStateKeepsTrackedStream(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	n := &mockNotifier{}
	tr := newTestTracker(repo, n, &now)

	started, err := tr.StartSession(context.Background(), testMember, "vc-1", "stage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(10 * time.Minute)
	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1", Username: "alice",
		AfterChannelID: "vc-1", AfterChannelName: "stage", IsStreaming: true,
	})
	tr.Close()

	starts, ends := n.counts()
	if starts != 0 || ends != 0 {
		t.Fatalf("expected no notices, got %d starts and %d ends", starts, ends)
	}
	a, _ := repo.GetActivity(context.Background(), "user-1", "guild-1")
	open := a.OpenSession()
	if open == nil || open.ID != started.Session.ID || len(a.Sessions) != 1 {
		t.Fatalf("expected the original session to stay open, got %+v", a.Sessions)
	}
}

func TestHandleVoiceStateUpdate_UnknownPriorStateInOtherChannelStartsNewSession(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeRepository()
	n := &mockNotifier{}
	tr := newTestTracker(repo, n, &now)

	if _, err := tr.StartSession(context.Background(), testMember, "vc-1", "stage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(10 * time.Minute)
	tr.HandleVoiceStateUpdate(discord.VoiceStateEvent{
		GuildID: "guild-1", UserID: "user-1", Username: "alice",
		AfterChannelID: "vc-2", AfterChannelName: "lounge", IsStreaming: true,
	})
	tr.Close()

	starts, ends := n.counts()
	if starts != 1 || ends != 1 {
		t.Fatalf("expected 1 start and 1 end notice, got %d and %d", starts, ends)
	}
	a, _ := repo.GetActivity(context.Background(), "user-1", "guild-1")
	if open := a.OpenSession(); open == nil || open.ChannelID != "vc-2" {
		t.Fatalf("expected open session in vc-2, got %+v", open)
	}
}
