package command

import (
	"context"
	"fmt"
	"time"

	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/notifier"
	"github.com/foxseedlab/golive/internal/report"
	"github.com/foxseedlab/golive/internal/repository"
	"github.com/foxseedlab/golive/internal/scheduler"
)

type ReportCommand struct {
	configs repository.GuildConfigRepository
	builder scheduler.ReportBuilder
	sink    scheduler.ReportSink
	now     func() time.Time
}

func NewReportCommand(configs repository.GuildConfigRepository, builder scheduler.ReportBuilder, sink scheduler.ReportSink) *ReportCommand {
	return &ReportCommand{configs: configs, builder: builder, sink: sink, now: time.Now}
}

func (c *ReportCommand) Definition() discord.SlashCommandDefinition {
	return discord.SlashCommandDefinition{
		Name:        "golive-report",
		Description: "Show who went live during the last hour.",
	}
}

// Handle replies with the first page. When the guild has a report channel,
// every page is posted there as well.
func (c *ReportCommand) Handle(ctx context.Context, event discord.SlashCommandEvent) (string, error) {
	cfg, err := c.configs.GetGuildConfig(ctx, event.GuildID)
	if err != nil {
		return "", fmt.Errorf("load guild config: %w", err)
	}
	r, err := c.builder.BuildReport(ctx, event.GuildID, report.KindHourly, report.HourlyWindow(c.now()))
	if err != nil {
		return "", err
	}
	content := notifier.PageText(r, r.Pages()[0], cfg.Location())

	if cfg.NotificationChannelID == "" {
		return content + "\n" + messageReportNoChannelHint, nil
	}
	if err := c.sink.DeliverReport(ctx, *cfg, r); err != nil {
		return "", fmt.Errorf("deliver on-demand report: %w", err)
	}
	return content + "\n" + fmt.Sprintf(messageReportSentHintFormat, cfg.NotificationChannelID), nil
}
