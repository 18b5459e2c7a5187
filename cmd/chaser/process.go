package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one processing cycle now",
		Long:  "Claims and processes due follow-up schedules. With --all, processes every pending schedule regardless of due time (backfill). Safe to run while the daemon is active.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := buildProcessor(cfg, gormDB, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			result, err := runBatch(cmd, p, all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d: sent=%d retried=%d failed=%d skipped=%d\n",
				result.Processed, result.Sent, result.Retried, result.Failed, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&all, "all", false, "process all pending schedules regardless of due time")
	return cmd
}
