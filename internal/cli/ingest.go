package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PollyDrive/estate/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load NDJSON listings from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		in := os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer f.Close()
			in = f
		}

		p := pipeline.New(a.store, a.cfg, a.profiles, nil, a.logger)
		counts, err := p.Ingest(cmd.Context(), in)
		printCounts(cmd, counts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
