package report

import "time"

type Kind string

const (
	KindHourly Kind = "hourly"
	KindDaily  Kind = "daily"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// HourlyWindow is the hour that ends at now.
func HourlyWindow(now time.Time) Window {
	return Window{Start: now.Add(-time.Hour), End: now}
}

// DailyWindow is the last calendar day in loc that has fully elapsed at now.
func DailyWindow(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start := time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: end}
}
