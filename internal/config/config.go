package config

import (
	"fmt"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env                   string
	StoreDriver           string
	DatabaseURL           string
	StoreConnectAttempts  int
	RedisURL              string
	GuildConfigCacheTTL   time.Duration
	DiscordToken          string
	DiscordCommandGuildID string
	DefaultTimezone       string
	ReportWebhookURL      string
	ReportTimeout         time.Duration
	ReportConcurrency     int
	RecoveryLookupTimeout time.Duration
	RecoveryConcurrency   int
	CommandCooldown       time.Duration
	MetricsAddr           string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.StoreConnectAttempts <= 0 {
		return fmt.Errorf("STORE_CONNECT_ATTEMPTS must be positive, got %d", c.StoreConnectAttempts)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE is invalid: %w", err)
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{name: "REPORT_TIMEOUT", value: c.ReportTimeout},
		{name: "RECOVERY_LOOKUP_TIMEOUT", value: c.RecoveryLookupTimeout},
		{name: "GUILD_CONFIG_CACHE_TTL", value: c.GuildConfigCacheTTL},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.CommandCooldown < 0 {
		return fmt.Errorf("COMMAND_COOLDOWN must not be negative, got %s", c.CommandCooldown)
	}
	if c.ReportConcurrency <= 0 {
		return fmt.Errorf("REPORT_CONCURRENCY must be positive, got %d", c.ReportConcurrency)
	}
	if c.RecoveryConcurrency <= 0 {
		return fmt.Errorf("RECOVERY_CONCURRENCY must be positive, got %d", c.RecoveryConcurrency)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DEFAULT_TIMEZONE", value: c.DefaultTimezone},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
