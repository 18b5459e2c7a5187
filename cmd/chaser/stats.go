package main

import (
	"fmt"
	"time"

	"github.com/avolkmer/chaser/internal/sla"
	"github.com/avolkmer/chaser/internal/store"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show processing queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			s, err := store.Stats(gormDB, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pending:      %d\n", s.TotalPending)
			fmt.Fprintf(out, "Due now:      %d\n", s.DueNow)
			fmt.Fprintf(out, "Sent today:   %d\n", s.SentToday)
			fmt.Fprintf(out, "Failed today: %d\n", s.FailedToday)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func newSLACmd() *cobra.Command {
	var (
		configPath string
		windowDays int
	)

	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Compute an SLA compliance snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			window := windowDays
			if window == 0 {
				window = cfg.SLA.WindowDays
			}
			snap, err := sla.Compute(gormDB, window, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Window:            %d days\n", snap.WindowDays)
			fmt.Fprintf(out, "Total requests:    %d\n", snap.Total)
			fmt.Fprintf(out, "Within SLA:        %d\n", snap.WithinSLA)
			fmt.Fprintf(out, "Breached:          %d\n", snap.BreachedSLA)
			fmt.Fprintf(out, "Critical overdue:  %d\n", snap.CriticalOverdue)
			fmt.Fprintf(out, "Avg response (h):  %.1f\n", snap.AverageResponseHours)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().IntVar(&windowDays, "window", 0, "trailing window in days (default from config)")
	return cmd
}
