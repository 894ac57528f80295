package activity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationRef struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}

type Session struct {
	ID              string           `json:"id"`
	ChannelID       string           `json:"channel_id"`
	ChannelName     string           `json:"channel_name"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         *time.Time       `json:"end_time,omitempty"`
	DurationMinutes int64            `json:"duration_minutes"`
	Interrupted     bool             `json:"interrupted"`
	NotificationRef *NotificationRef `json:"notification_ref,omitempty"`
	Day             string           `json:"day"`
	ISOWeek         string           `json:"iso_week"`
	Month           string           `json:"month"`
}

func (s *Session) IsOpen() bool {
	return s.EndTime == nil
}

// Overlaps treats the window as half-open [start, end) so a session touching
// a boundary is never attributed to both adjacent windows. An open session
// runs through the end of the window.
func (s *Session) Overlaps(start, end time.Time) bool {
	if !s.StartTime.Before(end) {
		return false
	}
	return s.EndTime == nil || s.EndTime.After(start)
}

// RollingWindow holds totals for the current period only. It is reset, not
// archived, when the period key changes.
type RollingWindow struct {
	PeriodKey    string `json:"period_key"`
	TotalMinutes int64  `json:"total_minutes"`
	SessionCount int    `json:"session_count"`
}

// UserGuildActivity is the aggregate for one (user, guild) pair. Sessions are
// append-only and only the last one may be open.
type UserGuildActivity struct {
	UserID         string         `json:"user_id"`
	GuildID        string         `json:"guild_id"`
	Username       string         `json:"username"`
	GuildName      string         `json:"guild_name"`
	Sessions       []Session      `json:"sessions"`
	TotalSessions  int            `json:"total_sessions"`
	TotalMinutes   int64          `json:"total_minutes"`
	CurrentDaily   *RollingWindow `json:"current_daily,omitempty"`
	CurrentWeekly  *RollingWindow `json:"current_weekly,omitempty"`
	CurrentMonthly *RollingWindow `json:"current_monthly,omitempty"`
}

// ClosedSession is the snapshot handed to notifications after a close.
type ClosedSession struct {
	SessionID       string
	ChannelID       string
	ChannelName     string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int64
	Interrupted     bool
	NotificationRef *NotificationRef
}

func New(userID, guildID string) *UserGuildActivity {
	return &UserGuildActivity{
		UserID:  userID,
		GuildID: guildID,
	}
}

func (a *UserGuildActivity) OpenSession() *Session {
	if len(a.Sessions) == 0 {
		return nil
	}
	last := &a.Sessions[len(a.Sessions)-1]
	if !last.IsOpen() {
		return nil
	}
	return last
}

func (a *UserGuildActivity) HasOpenSession() bool {
	return a.OpenSession() != nil
}

// StartSession closes any open session normally before appending the new one,
// so a duplicated start can never leave two sessions open. The implicitly
// closed session, if any, is returned alongside the new one.
func (a *UserGuildActivity) StartSession(now time.Time, channelID, channelName string) (*Session, *ClosedSession) {
	closed := a.EndSession(now)

	a.ensureWindows(now)
	a.Sessions = append(a.Sessions, Session{
		ID:          uuid.NewString(),
		ChannelID:   channelID,
		ChannelName: channelName,
		StartTime:   now,
		Day:         DayKey(now),
		ISOWeek:     ISOWeekKey(now),
		Month:       MonthKey(now),
	})
	return &a.Sessions[len(a.Sessions)-1], closed
}

func (a *UserGuildActivity) EndSession(now time.Time) *ClosedSession {
	return a.close(now, false)
}

// MarkInterrupted force-closes the open session. The span is not trusted as
// streaming time, so only session counts are incremented.
func (a *UserGuildActivity) MarkInterrupted(now time.Time) *ClosedSession {
	return a.close(now, true)
}

func (a *UserGuildActivity) close(now time.Time, interrupted bool) *ClosedSession {
	s := a.OpenSession()
	if s == nil {
		return nil
	}
	end := now
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	s.EndTime = &end
	s.DurationMinutes = DurationMinutes(s.StartTime, end)
	s.Interrupted = interrupted

	credited := s.DurationMinutes
	if interrupted {
		credited = 0
	}
	a.TotalSessions++
	a.TotalMinutes += credited

	a.ensureWindows(end)
	a.CurrentDaily.add(DayKey(end), credited)
	a.CurrentWeekly.add(ISOWeekKey(end), credited)
	a.CurrentMonthly.add(MonthKey(end), credited)

	return &ClosedSession{
		SessionID:       s.ID,
		ChannelID:       s.ChannelID,
		ChannelName:     s.ChannelName,
		StartTime:       s.StartTime,
		EndTime:         end,
		DurationMinutes: s.DurationMinutes,
		Interrupted:     interrupted,
		NotificationRef: s.NotificationRef,
	}
}

// AttachNotificationRef records the start notice on the given session. It
// reports false when that session is no longer present.
func (a *UserGuildActivity) AttachNotificationRef(sessionID string, ref NotificationRef) bool {
	for i := len(a.Sessions) - 1; i >= 0; i-- {
		if a.Sessions[i].ID == sessionID {
			a.Sessions[i].NotificationRef = &ref
			return true
		}
	}
	return false
}

func (a *UserGuildActivity) ensureWindows(now time.Time) {
	if a.CurrentDaily == nil {
		a.CurrentDaily = &RollingWindow{PeriodKey: DayKey(now)}
	}
	if a.CurrentWeekly == nil {
		a.CurrentWeekly = &RollingWindow{PeriodKey: ISOWeekKey(now)}
	}
	if a.CurrentMonthly == nil {
		a.CurrentMonthly = &RollingWindow{PeriodKey: MonthKey(now)}
	}
}

func (w *RollingWindow) add(periodKey string, minutes int64) {
	if w.PeriodKey != periodKey {
		w.PeriodKey = periodKey
		w.TotalMinutes = 0
		w.SessionCount = 0
	}
	w.TotalMinutes += minutes
	w.SessionCount++
}

// WindowFor returns the window as of now: a window whose period has already
// rolled over reads as empty.
func WindowFor(w *RollingWindow, periodKey string) RollingWindow {
	if w == nil || w.PeriodKey != periodKey {
		return RollingWindow{PeriodKey: periodKey}
	}
	return *w
}

func (a *UserGuildActivity) Clone() *UserGuildActivity {
	if a == nil {
		return nil
	}
	c := *a
	c.Sessions = make([]Session, len(a.Sessions))
	for i, s := range a.Sessions {
		if s.EndTime != nil {
			end := *s.EndTime
			s.EndTime = &end
		}
		if s.NotificationRef != nil {
			ref := *s.NotificationRef
			s.NotificationRef = &ref
		}
		c.Sessions[i] = s
	}
	c.CurrentDaily = cloneWindow(a.CurrentDaily)
	c.CurrentWeekly = cloneWindow(a.CurrentWeekly)
	c.CurrentMonthly = cloneWindow(a.CurrentMonthly)
	return &c
}

func cloneWindow(w *RollingWindow) *RollingWindow {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

func DurationMinutes(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}

func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func ISOWeekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-%02d", y, w)
}

func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
