package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/dkoval/poolctl/internal/application"
	"github.com/dkoval/poolctl/internal/domain"
)

// newRunCmd executes a child command as one unit of work against the pool:
// the selected account's identity and credential are exported in the child's
// environment, the child's wall time is charged against the account's quota,
// and a non-zero exit records a failure (failing over when configured).
func newRunCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a command with a pool-selected account",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("run requires a command after '--'")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			work := func(ctx context.Context, account domain.Account) application.WorkReport {
				credential := ""
				if account.SecretRef != "" {
					value, err := app.secretStore.Get(ctx, account.SecretRef)
					if err != nil {
						return application.WorkReport{Err: fmt.Sprintf("resolve credential: %v", err)}
					}
					credential = value
				}

				started := app.now()
				child := exec.CommandContext(ctx, args[0], args[1:]...)
				child.Stdout = cmd.OutOrStdout()
				child.Stderr = cmd.ErrOrStderr()
				child.Stdin = cmd.InOrStdin()
				child.Env = append(os.Environ(),
					"POOLCTL_ACCOUNT="+account.Identity,
					"POOLCTL_ACCOUNT_ID="+string(account.ID),
					"POOLCTL_CREDENTIAL="+credential,
				)

				err := child.Run()
				report := application.WorkReport{
					Success:       err == nil,
					QuotaConsumed: app.now().Sub(started),
				}
				if err != nil {
					report.Err = err.Error()
				}

				return report
			}

			accountID, err := app.pool.PerformWork(cmd.Context(), work)
			if err != nil {
				return err
			}

			account, err := app.pool.Account(accountID)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Completed on %s\n", account.Identity)
			return nil
		},
	}

	return cmd
}
