// Package cli provides the cobra command tree for classlogctl.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "classlogctl",
		Short: "Inspect and run class log verification locally",
		Long: `classlogctl - local tooling for the class log verification pipeline

Evaluate a geofence, reconcile a photo timestamp against a declared class
date, or run the whole verification pipeline in process against the
configured vision service. Reset a caller's throttle window in the
shared redis store.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newGeofenceCmd(),
		newReconcileCmd(),
		newVerifyCmd(),
		newSchemaCmd(),
		newThrottleCmd(),
	)
	return rootCmd
}

// Execute runs the root command with the given arguments and output writers.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
