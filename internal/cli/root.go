// Package cli wires the cobra command tree for the analysis toolchain.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adk-sentryskin/creatio-analysis/internal/config"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/adk-sentryskin/creatio-analysis/internal/cli.version=1.2.3"
	version = "1.0.0"

	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "creatio-analysis",
	Short: "Creatio lead and SentrySkin conversation analytics",
	Long: "Fetches leads from the Creatio CRM and workflow executions from the\n" +
		"SentrySkin n8n instance, extracts conversation fields, aggregates\n" +
		"per-user device profiles and serves the results as a web dashboard.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if !verbose {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (embedded defaults when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(fetchLeadsCmd)
	rootCmd.AddCommand(fetchExecutionsCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(doctorCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
