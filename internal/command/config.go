package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foxseedlab/golive/internal/discord"
	"github.com/foxseedlab/golive/internal/repository"
)

type ConfigCommand struct {
	configs repository.GuildConfigRepository
}

func NewConfigCommand(configs repository.GuildConfigRepository) *ConfigCommand {
	return &ConfigCommand{configs: configs}
}

func (c *ConfigCommand) Definition() discord.SlashCommandDefinition {
	return discord.SlashCommandDefinition{
		Name:        "golive-config",
		Description: "Configure go-live notices and scheduled reports.",
		Options: []discord.SlashCommandOption{
			{Name: "channel", Description: "Channel for notices and reports", Type: discord.CommandOptionChannel},
			{Name: "hourly", Description: "Post a report every hour", Type: discord.CommandOptionBoolean},
			{Name: "daily", Description: "Post a report every day at local midnight", Type: discord.CommandOptionBoolean},
			{Name: "timezone", Description: "IANA timezone such as Asia/Tokyo", Type: discord.CommandOptionString},
		},
		ManageGuildOnly: true,
	}
}

func (c *ConfigCommand) Handle(ctx context.Context, event discord.SlashCommandEvent) (string, error) {
	cfg, err := c.configs.GetGuildConfig(ctx, event.GuildID)
	if err != nil {
		return "", fmt.Errorf("load guild config: %w", err)
	}
	next := *cfg
	if v, ok := stringOption(event, "channel"); ok {
		next.NotificationChannelID = v
	}
	if v, ok := boolOption(event, "hourly"); ok {
		next.HourlyReportEnabled = v
	}
	if v, ok := boolOption(event, "daily"); ok {
		next.DailyReportEnabled = v
	}
	if v, ok := stringOption(event, "timezone"); ok {
		next.Timezone = strings.TrimSpace(v)
	}

	if err := c.configs.SaveGuildConfig(ctx, next); err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidTimezone):
			return fmt.Sprintf(messageInvalidTimezoneFormat, next.Timezone), nil
		case errors.Is(err, repository.ErrInvalidGuildConfig):
			return messageInvalidConfig, nil
		}
		return "", fmt.Errorf("save guild config: %w", err)
	}
	return messageConfigSaved + "\n" + describeConfig(next), nil
}

func describeConfig(cfg repository.GuildReportConfig) string {
	channel := "not set"
	if cfg.NotificationChannelID != "" {
		channel = "<#" + cfg.NotificationChannelID + ">"
	}
	return fmt.Sprintf("Channel: %s\nHourly reports: %s\nDaily reports: %s\nTimezone: `%s`",
		channel, onOff(cfg.HourlyReportEnabled), onOff(cfg.DailyReportEnabled), cfg.Timezone)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
