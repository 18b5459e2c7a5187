package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avolkmer/chaser/internal/escalation"
	"github.com/avolkmer/chaser/internal/scheduler"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the background processing loop",
		Long:  "Runs follow-up processing, escalation sweeps, and auto-approval on the configured cron cadence until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := buildProcessor(cfg, gormDB, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return scheduler.RunDaemon(ctx, p, scheduler.DaemonOpts{
		Cron:           cfg.Scheduler.Cron,
		Rules:          escalation.FromConfig(cfg.Escalation),
		ThresholdCents: cfg.Approval.ThresholdCents,
		Out:            cmd.OutOrStdout(),
	})
}
