// Package config provides YAML-based configuration loading for Chaser.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Chaser configuration, loaded from chaser.yaml.
type Config struct {
	Operator   OperatorConfig   `yaml:"operator"`
	Database   DatabaseConfig   `yaml:"database"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Retry      RetryConfig      `yaml:"retry"`
	Escalation EscalationConfig `yaml:"escalation"`
	Tokens     TokenConfig      `yaml:"tokens"`
	Approval   ApprovalConfig   `yaml:"approval"`
	SLA        SLAConfig        `yaml:"sla"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

// OperatorConfig names the human operator and where escalations go.
// Escalation recipients are always configured here, never hardcoded.
type OperatorConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"` // notifier-specific: channel ID, user ID
}

// DatabaseConfig holds connection settings for the MySQL server.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// NotifierConfig selects and configures the delivery platform.
type NotifierConfig struct {
	Platform string        `yaml:"platform"` // "slack", "discord", "log"
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials and the default channel.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord bot credentials and the default channel.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SchedulerConfig controls the processing loop cadence and batch behavior.
type SchedulerConfig struct {
	Cron                   string `yaml:"cron"` // 5-field cron expression
	BatchSize              int    `yaml:"batch_size"`
	DispatchTimeoutSeconds int    `yaml:"dispatch_timeout_seconds"`
	// RetryPermanentFailures keeps retrying deliveries the notifier has
	// classified as permanent. Default false: such items fail immediately
	// without consuming retry attempts.
	RetryPermanentFailures bool `yaml:"retry_permanent_failures"`
}

// RetryConfig sets the retry ceiling and per-priority backoff bases.
type RetryConfig struct {
	MaxAttempts         int `yaml:"max_attempts"`
	CriticalBaseMinutes int `yaml:"critical_base_minutes"`
	UrgentBaseMinutes   int `yaml:"urgent_base_minutes"`
	NormalBaseMinutes   int `yaml:"normal_base_minutes"`
	CapHours            int `yaml:"cap_hours"`
}

// LevelHours sets how many hours past the deadline each escalation level
// engages for one priority.
type LevelHours struct {
	Warning  float64 `yaml:"warning"`
	Overdue  float64 `yaml:"overdue"`
	Critical float64 `yaml:"critical"`
}

// EscalationConfig holds per-priority escalation thresholds. Thresholds are
// tunable policy, not fixed business law; validation only enforces that they
// are monotonic in severity.
type EscalationConfig struct {
	Critical LevelHours `yaml:"critical"`
	Urgent   LevelHours `yaml:"urgent"`
	Normal   LevelHours `yaml:"normal"`
}

// TokenConfig controls access code issuance and the expiry grace window.
type TokenConfig struct {
	TTLHours   int `yaml:"ttl_hours"`
	GraceHours int `yaml:"grace_hours"`
	CodeLength int `yaml:"code_length"`
}

// ApprovalConfig sets the auto-approval ceiling in cents.
type ApprovalConfig struct {
	ThresholdCents int64 `yaml:"threshold_cents"`
}

// SLAConfig sets the default trailing window for compliance snapshots.
type SLAConfig struct {
	WindowDays int `yaml:"window_days"`
}

// DashboardConfig holds settings for the operations dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "chaser"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Notifier.Platform == "" {
		c.Notifier.Platform = "log"
	}
	if c.Scheduler.Cron == "" {
		c.Scheduler.Cron = "*/5 * * * *"
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 100
	}
	if c.Scheduler.DispatchTimeoutSeconds == 0 {
		c.Scheduler.DispatchTimeoutSeconds = 15
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.CriticalBaseMinutes == 0 {
		c.Retry.CriticalBaseMinutes = 30
	}
	if c.Retry.UrgentBaseMinutes == 0 {
		c.Retry.UrgentBaseMinutes = 120
	}
	if c.Retry.NormalBaseMinutes == 0 {
		c.Retry.NormalBaseMinutes = 360
	}
	if c.Retry.CapHours == 0 {
		c.Retry.CapHours = 24
	}
	if c.Escalation.Critical == (LevelHours{}) {
		c.Escalation.Critical = LevelHours{Warning: 0.5, Overdue: 1, Critical: 2}
	}
	if c.Escalation.Urgent == (LevelHours{}) {
		c.Escalation.Urgent = LevelHours{Warning: 4, Overdue: 24, Critical: 72}
	}
	if c.Escalation.Normal == (LevelHours{}) {
		c.Escalation.Normal = LevelHours{Warning: 24, Overdue: 72, Critical: 168}
	}
	if c.Tokens.TTLHours == 0 {
		c.Tokens.TTLHours = 168
	}
	if c.Tokens.GraceHours == 0 {
		c.Tokens.GraceHours = 24
	}
	if c.Tokens.CodeLength == 0 {
		c.Tokens.CodeLength = 10
	}
	if c.Approval.ThresholdCents == 0 {
		c.Approval.ThresholdCents = 50000
	}
	if c.SLA.WindowDays == 0 {
		c.SLA.WindowDays = 30
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Operator.Name == "" {
		c.Operator.Name = "operator"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Notifier.Platform {
	case "log":
	case "slack":
		if c.Notifier.Slack.BotToken == "" {
			errs = append(errs, "notifier.slack.bot_token is required for platform slack")
		}
		if c.Notifier.Slack.Channel == "" {
			errs = append(errs, "notifier.slack.channel is required for platform slack")
		}
	case "discord":
		if c.Notifier.Discord.BotToken == "" {
			errs = append(errs, "notifier.discord.bot_token is required for platform discord")
		}
		if c.Notifier.Discord.ChannelID == "" {
			errs = append(errs, "notifier.discord.channel_id is required for platform discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("notifier.platform %q is not one of slack, discord, log", c.Notifier.Platform))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be at least 1")
	}
	if c.Tokens.CodeLength < 8 {
		errs = append(errs, "tokens.code_length must be at least 8")
	}
	if c.Tokens.GraceHours < 0 {
		errs = append(errs, "tokens.grace_hours must not be negative")
	}
	if c.Approval.ThresholdCents < 0 {
		errs = append(errs, "approval.threshold_cents must not be negative")
	}

	errs = append(errs, validateLevels("escalation.critical", c.Escalation.Critical)...)
	errs = append(errs, validateLevels("escalation.urgent", c.Escalation.Urgent)...)
	errs = append(errs, validateLevels("escalation.normal", c.Escalation.Normal)...)

	// Higher priorities must escalate at least as fast at every level.
	if c.Escalation.Critical.Warning > c.Escalation.Urgent.Warning ||
		c.Escalation.Critical.Overdue > c.Escalation.Urgent.Overdue ||
		c.Escalation.Critical.Critical > c.Escalation.Urgent.Critical {
		errs = append(errs, "escalation.critical thresholds must not exceed escalation.urgent")
	}
	if c.Escalation.Urgent.Warning > c.Escalation.Normal.Warning ||
		c.Escalation.Urgent.Overdue > c.Escalation.Normal.Overdue ||
		c.Escalation.Urgent.Critical > c.Escalation.Normal.Critical {
		errs = append(errs, "escalation.urgent thresholds must not exceed escalation.normal")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateLevels checks a single priority's thresholds are positive and
// ordered warning < overdue < critical.
func validateLevels(name string, lh LevelHours) []string {
	var errs []string
	if lh.Warning <= 0 || lh.Overdue <= 0 || lh.Critical <= 0 {
		errs = append(errs, name+" hours must be positive")
		return errs
	}
	if !(lh.Warning < lh.Overdue && lh.Overdue < lh.Critical) {
		errs = append(errs, name+" hours must increase from warning to overdue to critical")
	}
	return errs
}
