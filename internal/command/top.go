package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/foxseedlab/golive/internal/activity"
	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/repository"
)

const leaderboardSize = 10

type TopCommand struct {
	repo repository.ActivityRepository
}

func NewTopCommand(repo repository.ActivityRepository) *TopCommand {
	return &TopCommand{repo: repo}
}

func (c *TopCommand) Definition() discord.SlashCommandDefinition {
	return discord.SlashCommandDefinition{
		Name:        "golive-top",
		Description: "Show the members with the most time live in this server.",
	}
}

// Handle ranks by lifetime minutes. Interrupted streams add to the stream
// count but never to the minutes.
func (c *TopCommand) Handle(ctx context.Context, event discord.SlashCommandEvent) (string, error) {
	activities, err := c.repo.ListByGuild(ctx, event.GuildID)
	if err != nil {
		return "", fmt.Errorf("list guild activity: %w", err)
	}
	ranked := make([]*activity.UserGuildActivity, 0, len(activities))
	for _, a := range activities {
		if a.TotalSessions > 0 {
			ranked = append(ranked, a)
		}
	}
	if len(ranked) == 0 {
		return messageNoLeaderboard, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalMinutes != ranked[j].TotalMinutes {
			return ranked[i].TotalMinutes > ranked[j].TotalMinutes
		}
		return ranked[i].TotalSessions > ranked[j].TotalSessions
	})
	if len(ranked) > leaderboardSize {
		ranked = ranked[:leaderboardSize]
	}

	var b strings.Builder
	b.WriteString(":trophy: **Go-live leaderboard**")
	for i, a := range ranked {
		fmt.Fprintf(&b, "\n%d. <@%s>: **%s** in %d streams", i+1, a.UserID, formatMinutes(a.TotalMinutes), a.TotalSessions)
	}
	return b.String(), nil
}
