package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	statusrender "github.com/dkoval/poolctl/internal/adapters/render/status"
	"github.com/dkoval/poolctl/internal/domain"
)

func newPoolCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and steer the pool",
	}

	cmd.AddCommand(
		newPoolStatusCmd(app),
		newPoolNextCmd(app),
		newPoolRotateCmd(app),
		newPoolResetQuotasCmd(app),
		newPoolSettingsCmd(app),
	)

	return cmd
}

func newPoolStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pool status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := app.pool.Status()

			if asJSON {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("encode pool status: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), statusrender.Render(status, statusrender.RenderOptions{Now: app.now()}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newPoolNextCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Select the next available account (advances the rotation cursor)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, ok := app.pool.NextAvailableAccount()
			if !ok {
				return domain.ErrPoolEmpty
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", account.ID, account.Identity)
			return nil
		},
	}
}

func newPoolRotateCmd(app *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Put the active account into cooldown and pick a replacement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			next, err := app.pool.RotateToNext(reason)
			if err != nil {
				if errors.Is(err, domain.ErrPoolEmpty) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Pool is empty: no replacement available.")
				}
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rotated to %s\n", next.Identity)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the rotation")

	return cmd
}

func newPoolResetQuotasCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-quotas",
		Short: "Zero every account's daily quota usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.pool.ResetAllDailyQuotas()
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Daily quotas reset.")
			return nil
		},
	}
}

func newPoolSettingsCmd(app *app) *cobra.Command {
	var (
		strategy       string
		cooldown       time.Duration
		threshold      float64
		sessionTimeout time.Duration
		maxFailures    int
		autoFailover   bool
		autoRotate     bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update pool settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := app.pool.Settings()

			changed := false
			if cmd.Flags().Changed("strategy") {
				parsed, err := domain.ParseRotationStrategy(strategy)
				if err != nil {
					return err
				}
				settings.Strategy = parsed
				changed = true
			}
			if cmd.Flags().Changed("cooldown") {
				settings.CooldownDuration = cooldown
				changed = true
			}
			if cmd.Flags().Changed("quota-threshold") {
				settings.QuotaThresholdPercent = threshold
				changed = true
			}
			if cmd.Flags().Changed("session-timeout") {
				settings.SessionTimeout = sessionTimeout
				changed = true
			}
			if cmd.Flags().Changed("max-failures") {
				settings.MaxConsecutiveFailures = maxFailures
				changed = true
			}
			if cmd.Flags().Changed("auto-failover") {
				settings.AutoFailover = autoFailover
				changed = true
			}
			if cmd.Flags().Changed("auto-rotate-on-quota-low") {
				settings.AutoRotateOnQuotaLow = autoRotate
				changed = true
			}

			if changed {
				if err := app.pool.UpdateSettings(settings); err != nil {
					return err
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "strategy: %s\n", settings.Strategy)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cooldown: %s\n", settings.CooldownDuration)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "quota threshold: %.0f%%\n", settings.QuotaThresholdPercent)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session timeout: %s\n", settings.SessionTimeout)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "max consecutive failures: %d\n", settings.MaxConsecutiveFailures)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "auto failover: %t\n", settings.AutoFailover)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "auto rotate on quota low: %t\n", settings.AutoRotateOnQuotaLow)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "Rotation strategy: round_robin, least_used, priority, random")
	cmd.Flags().DurationVar(&cooldown, "cooldown", 0, "Cooldown duration after rotation")
	cmd.Flags().Float64Var(&threshold, "quota-threshold", 0, "Quota percent that triggers early rotation")
	cmd.Flags().DurationVar(&sessionTimeout, "session-timeout", 0, "Maximum session duration before rotation")
	cmd.Flags().IntVar(&maxFailures, "max-failures", 0, "Consecutive failures before suspension")
	cmd.Flags().BoolVar(&autoFailover, "auto-failover", false, "Pick a replacement on recorded failure")
	cmd.Flags().BoolVar(&autoRotate, "auto-rotate-on-quota-low", false, "Rotate automatically when quota runs low")

	return cmd
}
