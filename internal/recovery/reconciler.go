package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/metrics"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/foxseedlab/golive/internal/tracker"
	"golang.org/x/sync/errgroup"
)

var errLookupTimeout = errors.New("presence lookup timed out")

// PresenceOracle answers what a member is doing right now.
type PresenceOracle interface {
	GuildAvailable(ctx context.Context, guildID string) (bool, error)
	// ResolveVoiceState returns nil when the member cannot be resolved.
	ResolveVoiceState(ctx context.Context, guildID, userID string) (*discord.VoiceState, error)
}

type SessionInterrupter interface {
	InterruptSession(ctx context.Context, userID, guildID, sessionID string) (*tracker.Closed, error)
}

type Result struct {
	Kept        int
	Interrupted int
	Failed      int
}

type outcome int

const (
	outcomeKept outcome = iota
	outcomeInterrupted
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeKept:
		return "kept"
	case outcomeInterrupted:
		return "interrupted"
	default:
		return "failed"
	}
}

type Reconciler struct {
	repo          repository.ActivityRepository
	sessions      SessionInterrupter
	notifier      tracker.Notifier
	lookupTimeout time.Duration
	concurrency   int
}

func NewReconciler(repo repository.ActivityRepository, sessions SessionInterrupter, notifier tracker.Notifier, lookupTimeout time.Duration, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Reconciler{
		repo:          repo,
		sessions:      sessions,
		notifier:      notifier,
		lookupTimeout: lookupTimeout,
		concurrency:   concurrency,
	}
}

// Reconcile checks every session left open by a previous run against live
// presence. Sessions whose member is still streaming in the recorded channel
// stay open; every other one is closed as interrupted. A failure on one
// member never stops the others.
func (r *Reconciler) Reconcile(ctx context.Context, oracle PresenceOracle) (Result, error) {
	open, err := r.repo.ListWithOpenSession(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list open sessions: %w", err)
	}
	slog.Info("crash recovery started", "open_sessions", len(open))

	guilds := r.resolveGuilds(ctx, oracle, open)

	outcomes := make([]outcome, len(open))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, a := range open {
		g.Go(func() error {
			outcomes[i] = r.reconcileOne(gctx, oracle, a, guilds[a.GuildID])
			metrics.RecoveryOutcomes.WithLabelValues(outcomes[i].String()).Inc()
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for _, o := range outcomes {
		switch o {
		case outcomeKept:
			res.Kept++
		case outcomeInterrupted:
			res.Interrupted++
		default:
			res.Failed++
		}
	}
	slog.Info("crash recovery finished", "kept", res.Kept, "interrupted", res.Interrupted, "failed", res.Failed)
	return res, nil
}

func (r *Reconciler) resolveGuilds(ctx context.Context, oracle PresenceOracle, open []*activity.UserGuildActivity) map[string]bool {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, a := range open {
		if _, ok := seen[a.GuildID]; ok {
			continue
		}
		seen[a.GuildID] = struct{}{}
		ids = append(ids, a.GuildID)
	}

	available := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, guildID := range ids {
		g.Go(func() error {
			ok, err := withTimeout(gctx, r.lookupTimeout, func(ctx context.Context) (bool, error) {
				return oracle.GuildAvailable(ctx, guildID)
			})
			if err != nil {
				slog.Warn("failed to resolve guild during recovery; treating as unavailable", "error", err, "guild_id", guildID)
				return nil
			}
			available[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]bool, len(ids))
	for i, id := range ids {
		out[id] = available[i]
	}
	return out
}

func (r *Reconciler) reconcileOne(ctx context.Context, oracle PresenceOracle, a *activity.UserGuildActivity, guildAvailable bool) outcome {
	open := a.OpenSession()
	if open == nil {
		return outcomeKept
	}
	log := slog.With("guild_id", a.GuildID, "user_id", a.UserID, "session_id", open.ID, "channel_id", open.ChannelID)

	if !guildAvailable {
		log.Info("guild no longer available; interrupting session")
		if _, err := r.sessions.InterruptSession(ctx, a.UserID, a.GuildID, open.ID); err != nil {
			log.Error("failed to interrupt session", "error", err)
			return outcomeFailed
		}
		return outcomeInterrupted
	}

	vs, err := withTimeout(ctx, r.lookupTimeout, func(ctx context.Context) (*discord.VoiceState, error) {
		return oracle.ResolveVoiceState(ctx, a.GuildID, a.UserID)
	})
	if err != nil {
		log.Warn("failed to resolve member presence; treating as not streaming", "error", err)
		vs = nil
	}
	if vs != nil && vs.IsStreaming && vs.ChannelID == open.ChannelID {
		log.Info("member still streaming; keeping session open")
		return outcomeKept
	}

	closed, err := r.sessions.InterruptSession(ctx, a.UserID, a.GuildID, open.ID)
	if err != nil {
		log.Error("failed to interrupt session", "error", err)
		return outcomeFailed
	}
	if closed == nil {
		log.Info("session already closed by a live event")
		return outcomeKept
	}
	log.Info("session interrupted", "duration_minutes", closed.Session.DurationMinutes)

	member := tracker.Member{UserID: a.UserID, Username: a.Username, GuildID: a.GuildID, GuildName: a.GuildName}
	if err := r.notifier.NotifyEnd(ctx, tracker.EndNotice{Member: member, Closed: closed.Session}); err != nil {
		log.Warn("failed to send interrupted notice", "error", err)
	}
	return outcomeInterrupted
}

// withTimeout bounds fn even when it ignores its context.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()
	select {
	case res := <-done:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, errLookupTimeout
	}
}
