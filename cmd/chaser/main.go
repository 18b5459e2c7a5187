package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaser",
		Short: "Supplier follow-up and escalation engine",
		Long:  "Chaser chases external suppliers: reminder follow-ups, escalation of unresponsive requests, SLA reporting, and auto-approval of low-risk quotes.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newApproveCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newSLACmd())
	cmd.AddCommand(newDashboardCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chaser %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
