package main

import (
	"fmt"
	"time"

	"github.com/avolkmer/chaser/internal/models"
	"github.com/avolkmer/chaser/internal/notify"
	"github.com/avolkmer/chaser/internal/token"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and validate supplier access codes",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")

	cmd.AddCommand(newTokenIssueCmd(&configPath))
	cmd.AddCommand(newTokenValidateCmd(&configPath))
	return cmd
}

func newTokenIssueCmd(configPath *string) *cobra.Command {
	var (
		supplierID string
		requestID  string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access code for a supplier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			tok, err := token.Issue(gormDB, token.IssueOpts{
				SupplierID: supplierID,
				RequestID:  requestID,
				TTL:        time.Duration(cfg.Tokens.TTLHours) * time.Hour,
				CodeLength: cfg.Tokens.CodeLength,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Issued code %s (expires %s)\n", tok.Code, tok.ExpiresAt.Format(time.RFC3339))

			// Best-effort delivery to the supplier on record. The code is
			// already issued and printed; a failed send is only a warning.
			var sup models.Supplier
			if err := gormDB.First(&sup, "id = ?", supplierID).Error; err == nil {
				notifier, err := buildNotifier(cfg, cmd.OutOrStdout())
				if err == nil {
					resolver := notify.StaticResolver{
						OperatorName:    cfg.Operator.Name,
						OperatorAddress: cfg.Operator.Address,
					}
					msg := notify.Message{
						Recipient: resolver.Supplier(sup),
						Subject:   "Your access code",
						Body: fmt.Sprintf("Hello %s,\n\nYour access code is %s. It is valid until %s.\n",
							sup.Name, tok.Code, tok.ExpiresAt.Format(time.RFC1123)),
					}
					if err := notifier.Send(cmd.Context(), msg); err != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Warning: could not deliver code to supplier: %v\n", err)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Code delivered via %s.\n", notifier.Name())
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&supplierID, "supplier", "", "supplier ID (required)")
	cmd.Flags().StringVar(&requestID, "request", "", "optional request ID to scope the code to")
	cmd.MarkFlagRequired("supplier")
	return cmd
}

func newTokenValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <code>",
		Short: "Validate an access code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(*configPath)
			if err != nil {
				return err
			}
			v, err := token.Validate(gormDB, args[0], time.Duration(cfg.Tokens.GraceHours)*time.Hour)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !v.Valid {
				fmt.Fprintln(out, "invalid")
				return nil
			}
			if v.Extended {
				fmt.Fprintf(out, "valid (extended to %s), supplier %s\n", v.ExpiresAt.Format(time.RFC3339), v.SupplierID)
			} else {
				fmt.Fprintf(out, "valid until %s, supplier %s\n", v.ExpiresAt.Format(time.RFC3339), v.SupplierID)
			}
			if v.RequestID != "" {
				fmt.Fprintf(out, "scoped to request %s\n", v.RequestID)
			}
			return nil
		},
	}
}
