package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/repository"
)

type SessionLine struct {
	SessionID      string
	ChannelID      string
	ChannelName    string
	StartTime      time.Time
	EndTime        *time.Time
	Interrupted    bool
	ClippedSeconds int64
}

// Incomplete reports whether the session had no genuine stop: it is still
// open or was closed by recovery.
func (l SessionLine) Incomplete() bool {
	return l.EndTime == nil || l.Interrupted
}

type UserSummary struct {
	UserID          string
	Username        string
	Sessions        []SessionLine
	TotalSeconds    int64
	IncompleteCount int
}

func (u UserSummary) SessionCount() int {
	return len(u.Sessions)
}

type Summary struct {
	TotalSessions   int
	TotalSeconds    int64
	UniqueStreamers int
}

type Report struct {
	GuildID   string
	GuildName string
	Kind      Kind
	Window    Window
	Users     []UserSummary
	Summary   Summary
}

func (r *Report) Empty() bool {
	return len(r.Users) == 0
}

type Builder struct {
	repo repository.ActivityRepository
}

func NewBuilder(repo repository.ActivityRepository) *Builder {
	return &Builder{repo: repo}
}

// BuildReport summarizes every session of the guild that overlaps w, clipped
// to w. Daily reports rank users by clipped time; hourly reports keep the
// order in which users first appear, newest session first.
func (b *Builder) BuildReport(ctx context.Context, guildID string, kind Kind, w Window) (*Report, error) {
	activities, err := b.repo.ListOverlapping(ctx, guildID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s report: %w", kind, err)
	}
	return Aggregate(guildID, kind, w, activities), nil
}

type candidate struct {
	userID   string
	username string
	session  activity.Session
}

// Aggregate is the pure part of BuildReport.
func Aggregate(guildID string, kind Kind, w Window, activities []*activity.UserGuildActivity) *Report {
	r := &Report{GuildID: guildID, Kind: kind, Window: w}

	var candidates []candidate
	for _, a := range activities {
		if a == nil || a.GuildID != guildID {
			continue
		}
		if r.GuildName == "" {
			r.GuildName = a.GuildName
		}
		for _, s := range a.Sessions {
			if !s.Overlaps(w.Start, w.End) {
				continue
			}
			candidates = append(candidates, candidate{userID: a.UserID, username: a.Username, session: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].session.StartTime.After(candidates[j].session.StartTime)
	})

	seen := make(map[string]struct{}, len(candidates))
	index := make(map[string]int)
	for _, c := range candidates {
		key := c.userID + "|" + strconv.FormatInt(c.session.StartTime.UnixNano(), 10) + "|" + c.session.ChannelID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		i, ok := index[c.userID]
		if !ok {
			i = len(r.Users)
			index[c.userID] = i
			r.Users = append(r.Users, UserSummary{UserID: c.userID, Username: c.username})
		}
		line := SessionLine{
			SessionID:      c.session.ID,
			ChannelID:      c.session.ChannelID,
			ChannelName:    c.session.ChannelName,
			StartTime:      c.session.StartTime,
			EndTime:        c.session.EndTime,
			Interrupted:    c.session.Interrupted,
			ClippedSeconds: ClippedSeconds(c.session.StartTime, c.session.EndTime, w),
		}
		u := &r.Users[i]
		u.Sessions = append(u.Sessions, line)
		u.TotalSeconds += line.ClippedSeconds
		if line.Incomplete() {
			u.IncompleteCount++
		}
		r.Summary.TotalSessions++
		r.Summary.TotalSeconds += line.ClippedSeconds
	}
	r.Summary.UniqueStreamers = len(r.Users)

	if kind == KindDaily {
		sort.SliceStable(r.Users, func(i, j int) bool {
			return r.Users[i].TotalSeconds > r.Users[j].TotalSeconds
		})
	}
	return r
}

// ClippedSeconds is the part of [start, end) inside w, rounded to the nearest
// second. An open session runs through the end of the window.
func ClippedSeconds(start time.Time, end *time.Time, w Window) int64 {
	from := start
	if from.Before(w.Start) {
		from = w.Start
	}
	to := w.End
	if end != nil && end.Before(to) {
		to = *end
	}
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}
