package repository

import (
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

const DefaultTimezone = "UTC"

var (
	ErrInvalidGuildConfig = errors.New("invalid guild report config")
	ErrInvalidTimezone    = fmt.Errorf("%w: unknown timezone", ErrInvalidGuildConfig)
)

type GuildReportConfig struct {
	GuildID               string `json:"guild_id" validate:"required"`
	NotificationChannelID string `json:"notification_channel_id" validate:"omitempty,numeric"`
	HourlyReportEnabled   bool   `json:"hourly_report_enabled"`
	DailyReportEnabled    bool   `json:"daily_report_enabled"`
	Timezone              string `json:"timezone" validate:"required,timezone"`
}

func DefaultGuildReportConfig(guildID, timezone string) GuildReportConfig {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	return GuildReportConfig{GuildID: guildID, Timezone: timezone}
}

func (c GuildReportConfig) HourlyDue() bool {
	return c.NotificationChannelID != "" && c.HourlyReportEnabled
}

func (c GuildReportConfig) DailyDue() bool {
	return c.NotificationChannelID != "" && c.DailyReportEnabled
}

// Location never fails for a validated config; UTC is the fallback for
// records written before validation existed.
func (c GuildReportConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate rejects unknown timezones and malformed channel IDs before they
// reach storage.
func (c GuildReportConfig) Validate() error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Field() == "Timezone" {
			return fmt.Errorf("%w %q", ErrInvalidTimezone, c.Timezone)
		}
		return fmt.Errorf("%w: %s failed on %q (value %v)", ErrInvalidGuildConfig, fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("%w: %v", ErrInvalidGuildConfig, err)
}
