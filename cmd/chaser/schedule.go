package main

import (
	"fmt"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/store"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage follow-up schedules",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")

	cmd.AddCommand(newScheduleCreateCmd(&configPath))
	cmd.AddCommand(newScheduleListCmd(&configPath))
	cmd.AddCommand(newScheduleCancelCmd(&configPath))
	cmd.AddCommand(newScheduleRescheduleCmd(&configPath))
	return cmd
}

func newScheduleCreateCmd(configPath *string) *cobra.Command {
	var (
		requestID   string
		supplierID  string
		kind        string
		priority    string
		at          string
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a follow-up schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			scheduledFor := time.Now()
			if at != "" {
				scheduledFor, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}
			sched, err := store.Create(gormDB, store.CreateOpts{
				RequestID:    requestID,
				SupplierID:   supplierID,
				Kind:         models.FollowUpKind(kind),
				Priority:     models.Priority(priority),
				ScheduledFor: scheduledFor,
				MaxAttempts:  maxAttempts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created schedule %s (%s) for %s\n", sched.ID, sched.Kind, sched.ScheduledFor.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "request ID (required)")
	cmd.Flags().StringVar(&supplierID, "supplier", "", "supplier ID (required)")
	cmd.Flags().StringVar(&kind, "kind", string(models.KindQuotationReminder), "follow-up kind")
	cmd.Flags().StringVar(&priority, "priority", string(models.PriorityNormal), "priority")
	cmd.Flags().StringVar(&at, "at", "", "scheduled time (RFC3339, default now)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "retry ceiling (default from store)")
	cmd.MarkFlagRequired("request")
	cmd.MarkFlagRequired("supplier")
	return cmd
}

func newScheduleListCmd(configPath *string) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List follow-up schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			scheds, err := store.List(gormDB, store.ListFilters{
				Status: models.ScheduleStatus(status),
			})
			if err != nil {
				return err
			}
			if len(scheds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No schedules.")
				return nil
			}
			for _, s := range scheds {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-22s %-10s %-10s attempts=%d/%d due=%s\n",
					s.ID, s.Kind, s.Priority, s.Status, s.AttemptCount, s.MaxAttempts,
					s.ScheduledFor.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}

func newScheduleCancelCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <schedule-id>",
		Short: "Cancel a pending follow-up schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			if err := store.Cancel(gormDB, args[0]); err != nil {
				return err
			}
			store.Audit(gormDB, store.AuditOpts{
				Action:     "schedule_cancelled",
				ScheduleID: args[0],
				Actor:      "operator",
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled schedule %s\n", args[0])
			return nil
		},
	}
}

func newScheduleRescheduleCmd(configPath *string) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "reschedule <schedule-id>",
		Short: "Move a pending schedule, or revive a failed one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one schedule ID is required")
			}
			_, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			newTime, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("parse --at: %w", err)
			}
			if err := store.Reschedule(gormDB, args[0], newTime); err != nil {
				return err
			}
			store.Audit(gormDB, store.AuditOpts{
				Action:     "schedule_rescheduled",
				ScheduleID: args[0],
				Actor:      "operator",
				Detail:     "rescheduled to " + newTime.Format(time.RFC3339),
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Rescheduled %s to %s\n", args[0], newTime.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "new scheduled time (RFC3339, required)")
	cmd.MarkFlagRequired("at")
	return cmd
}
