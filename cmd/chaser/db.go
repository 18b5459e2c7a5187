package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/avolkmer/chaser/internal/config"
	"github.com/avolkmer/chaser/internal/db"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newDBCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")

	cmd.AddCommand(newDBInitCmd(&configPath))
	cmd.AddCommand(newDBMigrateCmd(&configPath))
	cmd.AddCommand(newDBSeedCmd(&configPath))
	cmd.AddCommand(newDBResetCmd(&configPath))
	return cmd
}

func newDBInitCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and run migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			adminDB, err := db.ConnectAdmin(cfg.Database)
			if err != nil {
				return err
			}
			if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
				return err
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s initialized.\n", cfg.Database.Name)
			return nil
		},
	}
}

func newDBMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func newDBSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo suppliers and requests for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			if err := db.SeedDemo(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Demo data seeded.")
			return nil
		},
	}
}

func newDBResetCmd(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the database (destructive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if !force {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("refusing to reset without --force on a non-interactive terminal")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "This drops database %q. Type the database name to confirm: ", cfg.Database.Name)
				reader := bufio.NewReader(cmd.InOrStdin())
				line, _ := reader.ReadString('\n')
				if strings.TrimSpace(line) != cfg.Database.Name {
					return fmt.Errorf("confirmation did not match, aborting")
				}
			}

			adminDB, err := db.ConnectAdmin(cfg.Database)
			if err != nil {
				return err
			}
			if err := db.DropDatabase(adminDB, cfg.Database.Name); err != nil {
				return err
			}
			if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
				return err
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s reset.\n", cfg.Database.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip the interactive confirmation")
	return cmd
}
