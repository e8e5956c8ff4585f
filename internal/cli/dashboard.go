package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adk-sentryskin/creatio-analysis/internal/dashboard"
)

var dashboardPort int

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the analytics dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if dashboardPort != 0 {
			cfg.Dashboard.Port = dashboardPort
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return dashboard.NewServer(cfg).Run(ctx)
	},
}

func init() {
	dashboardCmd.Flags().IntVar(&dashboardPort, "port", 0, "Port override")
}
