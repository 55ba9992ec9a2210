// Package cli defines the survaudit command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "survaudit",
	Short: "Survival analysis of building-complaint resolution times",
	Long: `survaudit models how long building complaints stay open.

It loads a complaints CSV, encodes resolution times as censored time-to-event
observations, tunes three survival model families on a validation split,
selects the best by integrated Brier score, and reports held-out test metrics
as text, JSON, CSV, and plots.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(synthCmd)
}
