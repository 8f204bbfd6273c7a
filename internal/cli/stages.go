package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/PollyDrive/estate/internal/llm"
	"github.com/PollyDrive/estate/internal/pipeline"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Extract structured fields from newly ingested listings",
	RunE: runStage(func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Counts, error) {
		return p.Collect(ctx)
	}),
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Apply the structural rule filter to collected listings",
	RunE: runStage(func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Counts, error) {
		return p.Filter(ctx)
	}),
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run the LLM semantic filter over structurally filtered listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		gateway, err := llm.NewGateway(a.cfg, a.logger)
		if err != nil {
			return err
		}
		defer gateway.Close()

		p := pipeline.New(a.store, a.cfg, a.profiles, gateway, a.logger)
		counts, err := p.Classify(cmd.Context())
		printCounts(cmd, counts)
		return err
	},
}

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Collapse duplicate listings onto their canonical",
	RunE: runStage(func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Counts, error) {
		return p.Dedup(ctx)
	}),
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Evaluate deduplicated listings against the chat profiles",
	RunE: runStage(func(ctx context.Context, p *pipeline.Pipeline) (pipeline.Counts, error) {
		return p.Match(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(collectCmd, filterCmd, classifyCmd, dedupCmd, matchCmd)
}

func runStage(stage func(context.Context, *pipeline.Pipeline) (pipeline.Counts, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		p := pipeline.New(a.store, a.cfg, a.profiles, nil, a.logger)
		counts, err := stage(cmd.Context(), p)
		printCounts(cmd, counts)
		return err
	}
}
