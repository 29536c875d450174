package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkoval/poolctl/internal/domain"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the active pool session",
	}

	cmd.AddCommand(
		newSessionStartCmd(app),
		newSessionEndCmd(app),
	)

	return cmd
}

func newSessionStartCmd(app *app) *cobra.Command {
	var accountRef string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session, ending any active one first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var accountID domain.AccountID
			if accountRef != "" {
				account, err := resolveAccount(app, accountRef)
				if err != nil {
					return err
				}
				accountID = account.ID
			}

			session, err := app.pool.StartSession(accountID)
			if err != nil {
				return err
			}

			account, err := app.pool.Account(session.AccountID)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Started session %s on %s\n", session.ID, account.Identity)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "Account id or identity (default: strategy pick)")

	return cmd
}

func newSessionEndCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, ended := app.pool.EndSession()
			if !ended {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No active session.")
				return nil
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ended session %s (%s)\n", session.ID, session.EndedAt.Sub(session.StartedAt).Round(time.Second))
			return nil
		},
	}
}
