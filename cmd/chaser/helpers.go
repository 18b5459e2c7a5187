package main

import (
	"fmt"
	"io"
	"time"

	"github.com/avolkmer/chaser/internal/backoff"
	"github.com/avolkmer/chaser/internal/config"
	"github.com/avolkmer/chaser/internal/db"
	"github.com/avolkmer/chaser/internal/notify"
	"github.com/avolkmer/chaser/internal/notify/discord"
	"github.com/avolkmer/chaser/internal/notify/slack"
	"github.com/avolkmer/chaser/internal/scheduler"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const defaultConfigPath = "chaser.yaml"

// loadConfigOnly loads configuration without opening a database connection.
func loadConfigOnly(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}

// connectFromConfig loads configuration and opens the database connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// buildNotifier constructs the configured delivery platform.
func buildNotifier(cfg *config.Config, out io.Writer) (notify.Notifier, error) {
	switch cfg.Notifier.Platform {
	case "slack":
		return slack.New(slack.Opts{
			BotToken: cfg.Notifier.Slack.BotToken,
			Channel:  cfg.Notifier.Slack.Channel,
		})
	case "discord":
		return discord.New(discord.Opts{
			BotToken:  cfg.Notifier.Discord.BotToken,
			ChannelID: cfg.Notifier.Discord.ChannelID,
		})
	case "log":
		return &notify.LogNotifier{Out: out}, nil
	}
	return nil, fmt.Errorf("unknown notifier platform %q", cfg.Notifier.Platform)
}

// buildProcessor wires a scheduler.Processor from configuration.
func buildProcessor(cfg *config.Config, gormDB *gorm.DB, out io.Writer) (*scheduler.Processor, error) {
	notifier, err := buildNotifier(cfg, out)
	if err != nil {
		return nil, err
	}
	return &scheduler.Processor{
		DB:       gormDB,
		Notifier: notifier,
		Renderer: notify.TextRenderer{},
		Resolver: notify.StaticResolver{
			OperatorName:    cfg.Operator.Name,
			OperatorAddress: cfg.Operator.Address,
		},
		Backoff:         backoff.FromConfig(cfg.Retry),
		BatchSize:       cfg.Scheduler.BatchSize,
		DispatchTimeout: time.Duration(cfg.Scheduler.DispatchTimeoutSeconds) * time.Second,
		RetryPermanent:  cfg.Scheduler.RetryPermanentFailures,
		Out:             out,
	}, nil
}

// runBatch dispatches to the due-only or backfill processing mode.
func runBatch(cmd *cobra.Command, p *scheduler.Processor, all bool) (*scheduler.BatchResult, error) {
	if all {
		return p.ProcessAll(cmd.Context())
	}
	return p.ProcessDue(cmd.Context())
}
