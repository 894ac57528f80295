package webhook

import (
	"context"
	"time"

	"github.com/foxseedlab/golive/internal/report"
)

const ReportSchemaVersion = 1

type SessionPayload struct {
	SessionID      string     `json:"session_id"`
	ChannelID      string     `json:"channel_id"`
	ChannelName    string     `json:"channel_name"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Interrupted    bool       `json:"interrupted"`
	ClippedSeconds int64      `json:"clipped_seconds"`
}

type UserPayload struct {
	UserID          string           `json:"user_id"`
	Username        string           `json:"username"`
	TotalSeconds    int64            `json:"total_seconds"`
	SessionCount    int              `json:"session_count"`
	IncompleteCount int              `json:"incomplete_count"`
	Sessions        []SessionPayload `json:"sessions"`
}

type SummaryPayload struct {
	TotalSessions   int   `json:"total_sessions"`
	TotalSeconds    int64 `json:"total_seconds"`
	UniqueStreamers int   `json:"unique_streamers"`
}

type ReportWebhookPayload struct {
	SchemaVersion int            `json:"schema_version"`
	GuildID       string         `json:"guild_id"`
	GuildName     string         `json:"guild_name"`
	Kind          string         `json:"kind"`
	WindowStart   time.Time      `json:"window_start"`
	WindowEnd     time.Time      `json:"window_end"`
	Summary       SummaryPayload `json:"summary"`
	Users         []UserPayload  `json:"users"`
}

type Sender interface {
	SendReport(ctx context.Context, payload ReportWebhookPayload) error
}

func NewReportWebhookPayload(r *report.Report) ReportWebhookPayload {
	p := ReportWebhookPayload{
		SchemaVersion: ReportSchemaVersion,
		GuildID:       r.GuildID,
		GuildName:     r.GuildName,
		Kind:          string(r.Kind),
		WindowStart:   r.Window.Start.UTC(),
		WindowEnd:     r.Window.End.UTC(),
		Summary: SummaryPayload{
			TotalSessions:   r.Summary.TotalSessions,
			TotalSeconds:    r.Summary.TotalSeconds,
			UniqueStreamers: r.Summary.UniqueStreamers,
		},
		Users: make([]UserPayload, 0, len(r.Users)),
	}
	for _, u := range r.Users {
		up := UserPayload{
			UserID:          u.UserID,
			Username:        u.Username,
			TotalSeconds:    u.TotalSeconds,
			SessionCount:    u.SessionCount(),
			IncompleteCount: u.IncompleteCount,
			Sessions:        make([]SessionPayload, 0, len(u.Sessions)),
		}
		for _, s := range u.Sessions {
			up.Sessions = append(up.Sessions, SessionPayload{
				SessionID:      s.SessionID,
				ChannelID:      s.ChannelID,
				ChannelName:    s.ChannelName,
				StartTime:      s.StartTime,
				EndTime:        s.EndTime,
				Interrupted:    s.Interrupted,
				ClippedSeconds: s.ClippedSeconds,
			})
		}
		p.Users = append(p.Users, up)
	}
	return p
}
