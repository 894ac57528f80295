package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/metrics"
	"github.com/foxseedlab/golive/internal/repository"
)

const (
	eventTimeout   = 30 * time.Second
	defaultShards  = 16
	shardQueueSize = 64
)

// Member identifies who is streaming and where, with display names captured
// at event time.
type Member struct {
	UserID    string
	Username  string
	GuildID   string
	GuildName string
}

type StartNotice struct {
	Member      Member
	SessionID   string
	ChannelID   string
	ChannelName string
	StartTime   time.Time
}

type EndNotice struct {
	Member Member
	Closed activity.ClosedSession
}

// Notifier delivers start and end notices. NotifyStart returns the reference
// of the posted notice, or nil when nothing was posted.
type Notifier interface {
	NotifyStart(ctx context.Context, notice StartNotice) (*activity.NotificationRef, error)
	NotifyEnd(ctx context.Context, notice EndNotice) error
}

type Started struct {
	Activity *activity.UserGuildActivity
	Session  activity.Session
	// Superseded is the session that was still open when the start arrived.
	Superseded *activity.ClosedSession
}

type Closed struct {
	Activity *activity.UserGuildActivity
	Session  activity.ClosedSession
}

type Tracker struct {
	repo       repository.ActivityRepository
	notifier   Notifier
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewTracker(repo repository.ActivityRepository, notifier Notifier) *Tracker {
	return &Tracker{
		repo:       repo,
		notifier:   notifier,
		dispatcher: NewDispatcher(defaultShards, shardQueueSize),
		now:        time.Now,
	}
}

// StartSession opens a new session for the member. Any session still open for
// the same member and guild is closed first.
func (t *Tracker) StartSession(ctx context.Context, m Member, channelID, channelName string) (*Started, error) {
	var started Started
	updated, err := t.repo.Update(ctx, m.UserID, m.GuildID, func(current *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
		if current == nil {
			current = activity.New(m.UserID, m.GuildID)
		}
		if m.Username != "" {
			current.Username = m.Username
		}
		if m.GuildName != "" {
			current.GuildName = m.GuildName
		}
		session, superseded := current.StartSession(t.now(), channelID, channelName)
		started.Session = *session
		started.Superseded = superseded
		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	started.Activity = updated
	metrics.SessionsStarted.Inc()
	if started.Superseded != nil {
		metrics.SessionsClosed.WithLabelValues("superseded").Inc()
	}
	slog.Info("stream session started", "guild_id", m.GuildID, "user_id", m.UserID, "channel_id", channelID, "session_id", started.Session.ID)
	return &started, nil
}

// EndSession closes the open session. It returns nil when nothing was open.
func (t *Tracker) EndSession(ctx context.Context, userID, guildID string) (*Closed, error) {
	return t.close(ctx, userID, guildID, "", false)
}

// MarkInterrupted force-closes the open session at the current time. It
// returns nil when nothing was open.
func (t *Tracker) MarkInterrupted(ctx context.Context, userID, guildID string) (*Closed, error) {
	return t.close(ctx, userID, guildID, "", true)
}

// InterruptSession is MarkInterrupted limited to one session: it is a no-op
// when the open session is no longer sessionID.
func (t *Tracker) InterruptSession(ctx context.Context, userID, guildID, sessionID string) (*Closed, error) {
	return t.close(ctx, userID, guildID, sessionID, true)
}

func (t *Tracker) close(ctx context.Context, userID, guildID, sessionID string, interrupted bool) (*Closed, error) {
	var snapshot *activity.ClosedSession
	updated, err := t.repo.Update(ctx, userID, guildID, func(current *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
		if current == nil {
			return nil, nil
		}
		if open := current.OpenSession(); sessionID != "" && (open == nil || open.ID != sessionID) {
			return nil, nil
		}
		if interrupted {
			snapshot = current.MarkInterrupted(t.now())
		} else {
			snapshot = current.EndSession(t.now())
		}
		if snapshot == nil {
			return nil, nil
		}
		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	if snapshot == nil {
		return nil, nil
	}
	reason := "stopped"
	if interrupted {
		reason = "interrupted"
	}
	metrics.SessionsClosed.WithLabelValues(reason).Inc()
	slog.Info("stream session closed",
		"guild_id", guildID,
		"user_id", userID,
		"session_id", snapshot.SessionID,
		"duration_minutes", snapshot.DurationMinutes,
		"interrupted", interrupted)
	return &Closed{Activity: updated, Session: *snapshot}, nil
}

// HandleVoiceStateUpdate queues the transition behind earlier transitions of
// the same member and guild. Bot accounts are ignored.
func (t *Tracker) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	if event.UserIsBot {
		return
	}
	slog.Debug("voice state update received",
		"guild_id", event.GuildID,
		"user_id", event.UserID,
		"before_channel_id", event.BeforeChannelID,
		"after_channel_id", event.AfterChannelID,
		"was_streaming", event.WasStreaming,
		"is_streaming", event.IsStreaming)
	t.dispatcher.Dispatch(event.GuildID+":"+event.UserID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		t.apply(ctx, event)
	})
}

// Close stops accepting events and waits for queued ones to finish.
func (t *Tracker) Close() {
	t.dispatcher.Close()
}

func (t *Tracker) apply(ctx context.Context, e discord.VoiceStateEvent) {
	member := Member{UserID: e.UserID, Username: e.Username, GuildID: e.GuildID, GuildName: e.GuildName}
	switch {
	case !e.BeforeKnown && e.IsStreaming:
		// Without a prior state this may be a stream that is already tracked.
		if t.streamingIn(ctx, member, e.AfterChannelID) {
			return
		}
		t.start(ctx, member, e.AfterChannelID, e.AfterChannelName)
	case !e.WasStreaming && e.IsStreaming:
		t.start(ctx, member, e.AfterChannelID, e.AfterChannelName)
	case e.WasStreaming && !e.IsStreaming:
		t.end(ctx, member)
	case e.WasStreaming && e.IsStreaming && e.BeforeChannelID != e.AfterChannelID:
		t.end(ctx, member)
		t.start(ctx, member, e.AfterChannelID, e.AfterChannelName)
	case !e.BeforeKnown && !e.IsStreaming:
		// Without a prior state the stop may have been missed.
		t.end(ctx, member)
	}
}

// streamingIn reports whether the member's open session is in channelID. A
// failed lookup reads as false so the event starts a session as usual.
func (t *Tracker) streamingIn(ctx context.Context, m Member, channelID string) bool {
	a, err := t.repo.GetActivity(ctx, m.UserID, m.GuildID)
	if err != nil {
		slog.Warn("failed to load activity for stream without prior state", "error", err, "guild_id", m.GuildID, "user_id", m.UserID)
		return false
	}
	if a == nil {
		return false
	}
	open := a.OpenSession()
	return open != nil && open.ChannelID == channelID
}

func (t *Tracker) start(ctx context.Context, m Member, channelID, channelName string) {
	started, err := t.StartSession(ctx, m, channelID, channelName)
	if err != nil {
		metrics.TrackingEventsDropped.WithLabelValues("start").Inc()
		slog.Error("failed to start stream session; event dropped", "error", err, "guild_id", m.GuildID, "user_id", m.UserID, "channel_id", channelID)
		return
	}
	if started.Superseded != nil {
		t.notifyEnd(ctx, m, *started.Superseded)
	}
	ref, err := t.notifier.NotifyStart(ctx, StartNotice{
		Member:      m,
		SessionID:   started.Session.ID,
		ChannelID:   channelID,
		ChannelName: channelName,
		StartTime:   started.Session.StartTime,
	})
	if err != nil {
		slog.Warn("failed to send stream start notice", "error", err, "guild_id", m.GuildID, "user_id", m.UserID, "session_id", started.Session.ID)
		return
	}
	if ref == nil {
		return
	}
	if err := t.attachNotificationRef(ctx, m, started.Session.ID, *ref); err != nil {
		slog.Warn("failed to store start notice reference", "error", err, "guild_id", m.GuildID, "user_id", m.UserID, "session_id", started.Session.ID)
	}
}

func (t *Tracker) attachNotificationRef(ctx context.Context, m Member, sessionID string, ref activity.NotificationRef) error {
	_, err := t.repo.Update(ctx, m.UserID, m.GuildID, func(current *activity.UserGuildActivity) (*activity.UserGuildActivity, error) {
		if current == nil || !current.AttachNotificationRef(sessionID, ref) {
			return nil, nil
		}
		return current, nil
	})
	return err
}

func (t *Tracker) end(ctx context.Context, m Member) {
	closed, err := t.EndSession(ctx, m.UserID, m.GuildID)
	if err != nil {
		metrics.TrackingEventsDropped.WithLabelValues("end").Inc()
		slog.Error("failed to end stream session; event dropped", "error", err, "guild_id", m.GuildID, "user_id", m.UserID)
		return
	}
	if closed == nil {
		return
	}
	if closed.Activity != nil {
		if m.Username == "" {
			m.Username = closed.Activity.Username
		}
		if m.GuildName == "" {
			m.GuildName = closed.Activity.GuildName
		}
	}
	t.notifyEnd(ctx, m, closed.Session)
}

func (t *Tracker) notifyEnd(ctx context.Context, m Member, closed activity.ClosedSession) {
	if err := t.notifier.NotifyEnd(ctx, EndNotice{Member: m, Closed: closed}); err != nil {
		slog.Warn("failed to send stream end notice", "error", err, "guild_id", m.GuildID, "user_id", m.UserID, "session_id", closed.SessionID)
	}
}
