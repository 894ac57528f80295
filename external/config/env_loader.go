package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/golive/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                   string        `env:"ENV" envDefault:"production"`
	StoreDriver           string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL           string        `env:"DATABASE_URL"`
	StoreConnectAttempts  int           `env:"STORE_CONNECT_ATTEMPTS" envDefault:"5"`
	RedisURL              string        `env:"REDIS_URL"`
	GuildConfigCacheTTL   time.Duration `env:"GUILD_CONFIG_CACHE_TTL" envDefault:"5m"`
	DiscordToken          string        `env:"DISCORD_TOKEN,required"`
	DiscordCommandGuildID string        `env:"DISCORD_COMMAND_GUILD_ID"`
	DefaultTimezone       string        `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
	ReportWebhookURL      string        `env:"REPORT_WEBHOOK_URL"`
	ReportTimeout         time.Duration `env:"REPORT_TIMEOUT" envDefault:"2m"`
	ReportConcurrency     int           `env:"REPORT_CONCURRENCY" envDefault:"4"`
	RecoveryLookupTimeout time.Duration `env:"RECOVERY_LOOKUP_TIMEOUT" envDefault:"5s"`
	RecoveryConcurrency   int           `env:"RECOVERY_CONCURRENCY" envDefault:"8"`
	CommandCooldown       time.Duration `env:"COMMAND_COOLDOWN" envDefault:"3s"`
	MetricsAddr           string        `env:"METRICS_ADDR" envDefault:":9090"`
}

// Load reads .env when present, then the process environment. Variables
// already set in the environment win over .env entries.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env file is unreadable: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                   raw.Env,
		StoreDriver:           raw.StoreDriver,
		DatabaseURL:           raw.DatabaseURL,
		StoreConnectAttempts:  raw.StoreConnectAttempts,
		RedisURL:              raw.RedisURL,
		GuildConfigCacheTTL:   raw.GuildConfigCacheTTL,
		DiscordToken:          raw.DiscordToken,
		DiscordCommandGuildID: raw.DiscordCommandGuildID,
		DefaultTimezone:       raw.DefaultTimezone,
		ReportWebhookURL:      raw.ReportWebhookURL,
		ReportTimeout:         raw.ReportTimeout,
		ReportConcurrency:     raw.ReportConcurrency,
		RecoveryLookupTimeout: raw.RecoveryLookupTimeout,
		RecoveryConcurrency:   raw.RecoveryConcurrency,
		CommandCooldown:       raw.CommandCooldown,
		MetricsAddr:           raw.MetricsAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
