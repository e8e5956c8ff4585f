package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adk-sentryskin/creatio-analysis/internal/dashboard"
	"github.com/adk-sentryskin/creatio-analysis/internal/pipeline"
)

var (
	skipFetch     bool
	skipAnalysis  bool
	dashboardOnly bool
	pipelinePort  int
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full analysis pipeline, then serve the dashboard",
	RunE:  runPipeline,
}

func init() {
	pipelineCmd.Flags().BoolVar(&skipFetch, "skip-fetch", false, "Reuse on-disk raw data instead of calling the APIs")
	pipelineCmd.Flags().BoolVar(&skipAnalysis, "skip-analysis", false, "Stop after fetching raw data")
	pipelineCmd.Flags().BoolVar(&dashboardOnly, "dashboard-only", false, "Skip all pipeline stages and serve existing artifacts")
	pipelineCmd.Flags().IntVar(&pipelinePort, "port", 0, "Dashboard port override")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if pipelinePort != 0 {
		cfg.Dashboard.Port = pipelinePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !dashboardOnly {
		_, err := pipeline.New(cfg).Run(ctx, pipeline.Options{
			SkipFetch:    skipFetch,
			SkipAnalysis: skipAnalysis,
		})
		if err != nil {
			// Serve whatever artifacts exist anyway; the error is already
			// logged and visible.
			cmd.PrintErrf("pipeline: %v\n", err)
		}
		if skipAnalysis {
			return err
		}
	}

	return dashboard.NewServer(cfg).Run(ctx)
}
