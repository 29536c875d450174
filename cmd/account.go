package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	filestore "github.com/dkoval/poolctl/internal/adapters/secrets/file"
	"github.com/dkoval/poolctl/internal/application"
	"github.com/dkoval/poolctl/internal/domain"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage pool accounts",
	}

	cmd.AddCommand(
		newAccountAddCmd(app),
		newAccountListCmd(app),
		newAccountRemoveCmd(app),
		newAccountRecoverCmd(app),
	)

	return cmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	var (
		identity   string
		priority   int
		dailyLimit time.Duration
		credential string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account to the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secretRef := ""
			if credential != "" {
				secretRef = filestore.KeyForIdentity(identity)
				if err := app.secretStore.Put(cmd.Context(), secretRef, credential); err != nil {
					return fmt.Errorf("store credential: %w", err)
				}
			}

			account, err := app.pool.AddAccount(application.AddAccountParams{
				Identity:        identity,
				SecretRef:       secretRef,
				Priority:        priority,
				DailyQuotaLimit: dailyLimit,
			})
			if err != nil {
				if secretRef != "" {
					_ = app.secretStore.Delete(cmd.Context(), secretRef)
				}
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added account %s (%s)\n", account.Identity, account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "Account identity (email or username, unique in pool)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Selection priority (lower = preferred)")
	cmd.Flags().DurationVar(&dailyLimit, "daily-limit", domain.DefaultDailyQuotaLimit, "Daily quota limit")
	cmd.Flags().StringVar(&credential, "credential", "", "Credential value to store for this account")
	_ = cmd.MarkFlagRequired("identity")

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pool accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts := app.pool.Accounts()

			if asJSON {
				data, err := json.MarshalIndent(accounts, "", "  ")
				if err != nil {
					return fmt.Errorf("encode accounts: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			for _, account := range accounts {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tp%d\t%s\t%s/%s\n",
					account.ID, account.Identity, account.Priority, account.Status,
					account.DailyQuotaUsed.Round(time.Second), account.DailyQuotaLimit)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id-or-identity>",
		Short: "Remove an account from the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(app, args[0])
			if err != nil {
				return err
			}

			if err := app.pool.RemoveAccount(account.ID); err != nil {
				return err
			}
			if account.SecretRef != "" {
				_ = app.secretStore.Delete(cmd.Context(), account.SecretRef)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s\n", account.Identity)
			return nil
		},
	}
}

func newAccountRecoverCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <id-or-identity>",
		Short: "Reset a suspended or errored account back to active",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := resolveAccount(app, args[0])
			if err != nil {
				return err
			}

			if err := app.pool.RecoverAccount(account.ID); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recovered account %s\n", account.Identity)
			return nil
		},
		Args: cobra.ExactArgs(1),
	}
}

// resolveAccount accepts either the opaque account id or the identity.
func resolveAccount(app *app, ref string) (domain.Account, error) {
	trimmed := strings.TrimSpace(ref)
	for _, account := range app.pool.Accounts() {
		if string(account.ID) == trimmed || strings.EqualFold(account.Identity, trimmed) {
			return account, nil
		}
	}

	return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, ref)
}
