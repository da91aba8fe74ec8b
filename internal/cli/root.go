package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rung",
		Short: "Rung manages stacked branches and keeps them rebased in dependency order",
		Long: `Rung manages stacked branches: each branch declares the branch it builds
on, and rung keeps the whole stack rebased in dependency order. Every
rewriting command takes a backup first, pauses cleanly on conflicts, and
can always be aborted or undone.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newInitCmd(),
		newTrackCmd(),
		newUntrackCmd(),
		newStatusCmd(),
		newSyncCmd(),
		newRestackCmd(),
		newSplitCmd(),
		newFoldCmd(),
		newAbsorbCmd(),
		newContinueCmd(),
		newAbortCmd(),
		newUndoCmd(),
	)

	return rootCmd
}
