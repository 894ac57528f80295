package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/report"
)

const clockLayout = "15:04"

// PageEmbed renders one report page for a channel post.
func PageEmbed(r *report.Report, p report.Page, loc *time.Location) discord.Embed {
	e := discord.Embed{
		Title:       reportTitle(r.Kind),
		Description: windowLine(r, loc) + "\n" + summaryLine(p.Summary),
		Color:       colorReport,
		Footer:      fmt.Sprintf("Page %d/%d", p.Number, p.Total),
		Timestamp:   r.Window.End,
	}
	if p.NoActivity {
		e.Description += "\n\n" + reportNoActivity
		e.Color = colorNoReports
		return e
	}
	for _, block := range userBlocks(p) {
		e.Fields = append(e.Fields, discord.EmbedField{
			Name:  userHeader(block.user),
			Value: strings.Join(sessionLines(block.sessions, loc), "\n"),
		})
	}
	return e
}

// PageText renders one report page as plain message content.
func PageText(r *report.Report, p report.Page, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(reportTitle(r.Kind))
	b.WriteString("\n")
	b.WriteString(windowLine(r, loc))
	b.WriteString("\n")
	b.WriteString(summaryLine(p.Summary))
	if p.NoActivity {
		b.WriteString("\n")
		b.WriteString(reportNoActivity)
		return b.String()
	}
	for _, block := range userBlocks(p) {
		b.WriteString("\n**")
		b.WriteString(userHeader(block.user))
		b.WriteString("**")
		for _, line := range sessionLines(block.sessions, loc) {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	if p.Total > 1 {
		fmt.Fprintf(&b, "\n-# Page %d/%d", p.Number, p.Total)
	}
	return b.String()
}

type userBlock struct {
	user     *report.UserSummary
	sessions []*report.SessionLine
}

func userBlocks(p report.Page) []userBlock {
	var blocks []userBlock
	for _, e := range p.Entries {
		switch e.Kind {
		case report.EntryUserHeader:
			blocks = append(blocks, userBlock{user: e.User})
		case report.EntrySession:
			if len(blocks) == 0 {
				continue
			}
			last := &blocks[len(blocks)-1]
			last.sessions = append(last.sessions, e.Session)
		}
	}
	return blocks
}

func reportTitle(kind report.Kind) string {
	if kind == report.KindDaily {
		return reportDailyTitle
	}
	return reportHourlyTitle
}

func windowLine(r *report.Report, loc *time.Location) string {
	start := r.Window.Start.In(loc)
	end := r.Window.End.In(loc)
	if r.Kind == report.KindDaily {
		return fmt.Sprintf("-# %s (%s)", start.Format(time.DateOnly), loc.String())
	}
	return fmt.Sprintf("-# %s %s to %s (%s)", start.Format(time.DateOnly), start.Format(clockLayout), end.Format(clockLayout), loc.String())
}

func summaryLine(s report.Summary) string {
	return fmt.Sprintf("**%d** sessions, **%s** live, **%d** streamers", s.TotalSessions, FormatSeconds(s.TotalSeconds), s.UniqueStreamers)
}

func userHeader(u *report.UserSummary) string {
	name := u.Username
	if name == "" {
		name = u.UserID
	}
	header := fmt.Sprintf("%s: %s in %d sessions", name, FormatSeconds(u.TotalSeconds), u.SessionCount())
	if u.IncompleteCount > 0 {
		header += fmt.Sprintf(", %d incomplete", u.IncompleteCount)
	}
	return header
}

func sessionLines(sessions []*report.SessionLine, loc *time.Location) []string {
	lines := make([]string, 0, len(sessions))
	for _, s := range sessions {
		end := "now"
		if s.EndTime != nil {
			end = s.EndTime.In(loc).Format(clockLayout)
		}
		line := fmt.Sprintf("<#%s> %s-%s, %s", s.ChannelID, s.StartTime.In(loc).Format(clockLayout), end, FormatSeconds(s.ClippedSeconds))
		if s.Incomplete() {
			line += reportIncomplete
		}
		lines = append(lines, line)
	}
	return lines
}
