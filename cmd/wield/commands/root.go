package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wield",
		Short: "Wield - push-based configuration apply engine",
		Long: `Wield pushes desired state to nodes over SSH and reconciles each
node's items in dependency order.

Features:
  - Declarative items (files, packages, canned actions)
  - Deterministic dependency ordering with cycle detection
  - Trigger-driven canned actions (fire at most once per run)
  - Per-node locks with holder identity and expiry
  - Partial-failure runs that keep going past failed subtrees`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "wield.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newLockCommand())
	rootCmd.AddCommand(newVerifyCommand())

	return rootCmd
}
