package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"complaint-survival-audit/internal/dataset"
)

var synthFlags struct {
	out  string
	rows int
	seed int64
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate a synthetic complaints CSV for demos and fixtures",
	RunE: func(cmd *cobra.Command, args []string) error {
		if synthFlags.out == "" {
			return errors.New("--out is required")
		}
		if err := dataset.WriteSynthetic(synthFlags.out, synthFlags.rows, synthFlags.seed); err != nil {
			return err
		}
		fmt.Printf("Wrote %d synthetic complaints to %s\n", synthFlags.rows, synthFlags.out)
		return nil
	},
}

func init() {
	synthCmd.Flags().StringVar(&synthFlags.out, "out", "", "Output CSV path")
	synthCmd.Flags().IntVar(&synthFlags.rows, "rows", 2000, "Number of rows to generate")
	synthCmd.Flags().Int64Var(&synthFlags.seed, "seed", 20260825, "Generator seed")
}
