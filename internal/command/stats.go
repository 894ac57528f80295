package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/repository"
)

type StatsCommand struct {
	repo repository.ActivityRepository
	now  func() time.Time
}

func NewStatsCommand(repo repository.ActivityRepository) *StatsCommand {
	return &StatsCommand{repo: repo, now: time.Now}
}

func (c *StatsCommand) Definition() discord.SlashCommandDefinition {
	return discord.SlashCommandDefinition{
		Name:        "golive-stats",
		Description: "Show go-live totals for you or another member.",
		Options: []discord.SlashCommandOption{
			{Name: "user", Description: "Member to look up", Type: discord.CommandOptionUser},
		},
	}
}

func (c *StatsCommand) Handle(ctx context.Context, event discord.SlashCommandEvent) (string, error) {
	userID := event.UserID
	if v, ok := stringOption(event, "user"); ok {
		userID = v
	}
	a, err := c.repo.GetActivity(ctx, userID, event.GuildID)
	if err != nil {
		return "", fmt.Errorf("load activity: %w", err)
	}
	if a == nil || len(a.Sessions) == 0 {
		return fmt.Sprintf(messageNoStreamsFormat, userID), nil
	}

	now := c.now()
	day := activity.WindowFor(a.CurrentDaily, activity.DayKey(now))
	week := activity.WindowFor(a.CurrentWeekly, activity.ISOWeekKey(now))
	month := activity.WindowFor(a.CurrentMonthly, activity.MonthKey(now))

	var b strings.Builder
	fmt.Fprintf(&b, ":bar_chart: **Go-live stats for <@%s>**\n", userID)
	fmt.Fprintf(&b, "Lifetime: **%d** streams, **%s**\n", a.TotalSessions, formatMinutes(a.TotalMinutes))
	fmt.Fprintf(&b, "Today: **%d** streams, **%s**\n", day.SessionCount, formatMinutes(day.TotalMinutes))
	fmt.Fprintf(&b, "This week: **%d** streams, **%s**\n", week.SessionCount, formatMinutes(week.TotalMinutes))
	fmt.Fprintf(&b, "This month: **%d** streams, **%s**", month.SessionCount, formatMinutes(month.TotalMinutes))
	if open := a.OpenSession(); open != nil {
		fmt.Fprintf(&b, "\n:red_circle: Live now in <#%s> since <t:%d:R>", open.ChannelID, open.StartTime.Unix())
	}
	return b.String(), nil
}

func formatMinutes(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}
