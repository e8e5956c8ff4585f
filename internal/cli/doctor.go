package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/adk-sentryskin/creatio-analysis/internal/health"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check artifact freshness, credentials and the dashboard endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return health.Check(os.Stdout, cfg)
	},
}
