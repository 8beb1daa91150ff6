package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	envFile    string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "canvasctl",
		Short: "Headless workflow canvas editor",
		Long: `canvasctl drives the workflow canvas state engine without a UI.

It validates and inspects workflow definitions, replays scripted editing
sessions (node and edge edits, renames, router routes, undo and redo),
folds polled run status into node data, and keeps autosaved drafts and an
audit trail in a local SQLite database.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with CANVAS_* overrides")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newReplayCommand())
	rootCmd.AddCommand(newDraftsCommand())
	rootCmd.AddCommand(newAuditCommand())

	return rootCmd
}
