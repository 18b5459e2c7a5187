package main

import (
	"fmt"
	"time"

	"github.com/avolkmer/chaser/internal/approval"
	"github.com/avolkmer/chaser/internal/models"
	"github.com/spf13/cobra"
)

func newApproveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Auto-approval policy operations",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")

	cmd.AddCommand(newApproveEvalCmd(&configPath))
	cmd.AddCommand(newApproveSweepCmd(&configPath))
	return cmd
}

func newApproveEvalCmd(configPath *string) *cobra.Command {
	var (
		amountCents int64
		priority    string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the auto-approval policy for an amount and priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOnly(*configPath)
			if err != nil {
				return err
			}
			p := models.Priority(priority)
			if !p.Valid() {
				return fmt.Errorf("unknown priority %q", priority)
			}
			if approval.Evaluate(amountCents, cfg.Approval.ThresholdCents, p) {
				fmt.Fprintf(cmd.OutOrStdout(), "approve: %d < %d and priority %s is not critical\n",
					amountCents, cfg.Approval.ThresholdCents, p)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "requires human approval (amount %d, threshold %d, priority %s)\n",
					amountCents, cfg.Approval.ThresholdCents, p)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&amountCents, "amount", 0, "amount in cents (required)")
	cmd.Flags().StringVar(&priority, "priority", string(models.PriorityNormal), "priority")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newApproveSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Auto-approve all qualifying pending decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			n, err := approval.Sweep(gormDB, cfg.Approval.ThresholdCents, time.Now(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Auto-approved %d decision(s).\n", n)
			return nil
		},
	}
}
