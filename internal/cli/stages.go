package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/adk-sentryskin/creatio-analysis/internal/analyze"
	"github.com/adk-sentryskin/creatio-analysis/internal/creatio"
	"github.com/adk-sentryskin/creatio-analysis/internal/extract"
	"github.com/adk-sentryskin/creatio-analysis/internal/n8n"
	"github.com/adk-sentryskin/creatio-analysis/internal/report"
	"github.com/adk-sentryskin/creatio-analysis/internal/store"
)

// Individual pipeline stages, runnable on their own. Each stage reads the
// previous stage's artifact from disk and writes its own, so a failed run can
// be resumed at the stage that broke.

var registerMethodGUID string

var fetchLeadsCmd = &cobra.Command{
	Use:   "fetch-leads",
	Short: "Fetch CRM leads and write the leads export",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := stageContext()
		defer stop()

		httpClient := &http.Client{}
		tokens := creatio.NewTokenProvider(cfg.Creatio.TokenURL, cfg.Creatio.ClientID, cfg.Creatio.ClientSecret, httpClient)
		client := creatio.NewLeadClient(cfg.Creatio.ODataURL, tokens, cfg.Mappings, httpClient)

		var leads []creatio.Lead
		if registerMethodGUID != "" {
			leads, err = client.FetchByRegisterMethod(ctx, registerMethodGUID)
		} else {
			cutoff, cerr := cfg.Analysis.Cutoff()
			if cerr != nil {
				return cerr
			}
			leads, err = client.FetchByCreatedSince(ctx, cutoff)
		}
		if err != nil {
			return err
		}

		path := cfg.Files.Path(cfg.Files.LeadsExport)
		if err := store.WriteLeadsCSV(path, leads); err != nil {
			return err
		}
		log.Info().Int("leads", len(leads)).Str("path", path).Msg("Leads export written")
		return nil
	},
}

var fetchExecutionsCmd = &cobra.Command{
	Use:   "fetch-executions",
	Short: "Fetch workflow executions and write the raw data file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := stageContext()
		defer stop()

		start, err := cfg.Analysis.Start()
		if err != nil {
			return err
		}

		client := n8n.NewClient(cfg.SentrySkin.BaseURL, cfg.SentrySkin.APIKey, cfg.SentrySkin.WorkflowID, cfg.SentrySkin.PageSize, &http.Client{})
		executions, err := client.FetchSince(ctx, start)
		if err != nil {
			return err
		}

		path := cfg.Files.Path(cfg.Files.RawExecutions)
		if err := store.WriteRawExecutionsCSV(path, executions); err != nil {
			return err
		}
		log.Info().Int("executions", len(executions)).Str("path", path).Msg("Raw executions written")
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract conversation fields from the raw execution data",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		executions, err := store.ReadRawExecutionsCSV(cfg.Files.Path(cfg.Files.RawExecutions))
		if err != nil {
			return err
		}

		records, skipped := extract.Run(executions)
		for _, s := range skipped {
			log.Debug().Str("execution_id", s.ExecutionID).Str("reason", s.Reason).Msg("Execution skipped")
		}

		path := cfg.Files.Path(cfg.Files.Extracted)
		if err := store.WriteExtractedCSV(path, records); err != nil {
			return err
		}
		if err := store.WriteJSON(jsonName(path), records); err != nil {
			return err
		}
		log.Info().Int("records", len(records)).Int("skipped", len(skipped)).Str("path", path).Msg("Extraction written")
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate extracted records into per-user profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		start, err := cfg.Analysis.Start()
		if err != nil {
			return err
		}

		records, err := store.ReadExtractedCSV(cfg.Files.Path(cfg.Files.Extracted))
		if err != nil {
			return err
		}

		profiles := analyze.Aggregate(records, start)
		path := cfg.Files.Path(cfg.Files.UserAnalysis)
		if err := store.WriteProfilesCSV(path, profiles); err != nil {
			return err
		}
		if err := store.WriteJSON(jsonName(path), profiles); err != nil {
			return err
		}
		log.Info().Int("profiles", len(profiles)).Str("path", path).Msg("User analysis written")
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build and print the windowed activity report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cutoff, err := cfg.Analysis.Cutoff()
		if err != nil {
			return err
		}

		profiles, err := store.ReadProfilesCSV(cfg.Files.Path(cfg.Files.UserAnalysis))
		if err != nil {
			return err
		}

		rep := report.Build(profiles, cutoff)
		if err := store.WriteReportCSV(cfg.Files.Path(cfg.Files.WindowedReport), rep.Profiles); err != nil {
			return err
		}
		rep.Print(os.Stdout)
		return nil
	},
}

func init() {
	fetchLeadsCmd.Flags().StringVar(&registerMethodGUID, "register-method", "", "Filter by register method GUID instead of creation date")
}

func stageContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func jsonName(csvPath string) string {
	return strings.TrimSuffix(csvPath, ".csv") + ".json"
}
