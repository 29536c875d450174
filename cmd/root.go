package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "poolctl",
		Short:         "poolctl: rotate a pool of quota-limited provider accounts",
		Long:          "poolctl manages a pool of interchangeable provider accounts: it tracks daily quota, rotates accounts through cooldown, suspends repeat offenders, and fails over to the next eligible account.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		app.close()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newSessionCmd(app),
		newPoolCmd(app),
		newRunCmd(app),
		newWatchCmd(app),
	)

	return rootCmd
}
