// Package pipeline composes the processing stages in one process: fetch
// leads, fetch executions, extract, aggregate, report. Stages hand typed
// slices to each other; every stage still writes its flat-file artifact so
// the dashboard and external consumers can read the results later.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/adk-sentryskin/creatio-analysis/internal/analyze"
	"github.com/adk-sentryskin/creatio-analysis/internal/config"
	"github.com/adk-sentryskin/creatio-analysis/internal/creatio"
	"github.com/adk-sentryskin/creatio-analysis/internal/extract"
	"github.com/adk-sentryskin/creatio-analysis/internal/n8n"
	"github.com/adk-sentryskin/creatio-analysis/internal/report"
	"github.com/adk-sentryskin/creatio-analysis/internal/store"
)

// Options controls which stages run.
type Options struct {
	SkipFetch    bool // reuse on-disk raw artifacts instead of calling upstream APIs
	SkipAnalysis bool // stop after the fetch stages
}

// Result carries the typed output of one pipeline run.
type Result struct {
	RunID    string
	Leads    []creatio.Lead
	Records  []extract.Record
	Skipped  []extract.Skip
	Profiles []*analyze.UserProfile
	Report   *report.Report
}

type Pipeline struct {
	cfg        *config.Config
	leads      *creatio.LeadClient
	executions *n8n.Client
}

func New(cfg *config.Config) *Pipeline {
	httpClient := &http.Client{}
	tokens := creatio.NewTokenProvider(cfg.Creatio.TokenURL, cfg.Creatio.ClientID, cfg.Creatio.ClientSecret, httpClient)
	return &Pipeline{
		cfg:        cfg,
		leads:      creatio.NewLeadClient(cfg.Creatio.ODataURL, tokens, cfg.Mappings, httpClient),
		executions: n8n.NewClient(cfg.SentrySkin.BaseURL, cfg.SentrySkin.APIKey, cfg.SentrySkin.WorkflowID, cfg.SentrySkin.PageSize, httpClient),
	}
}

// Run executes the selected stages. Upstream fetch failures are logged and
// leave their artifact unwritten; the final verification turns missing
// artifacts into the run's error.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{RunID: uuid.New().String()}
	logger := log.With().Str("run_id", res.RunID).Logger()
	logger.Info().Bool("skip_fetch", opts.SkipFetch).Bool("skip_analysis", opts.SkipAnalysis).Msg("Pipeline started")

	cutoff, err := p.cfg.Analysis.Cutoff()
	if err != nil {
		return nil, fmt.Errorf("parse cutoff date: %w", err)
	}
	start, err := p.cfg.Analysis.Start()
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}

	var executions []n8n.Execution
	haveExecutions := false

	if !opts.SkipFetch {
		leads, err := p.leads.FetchByCreatedSince(ctx, cutoff)
		if err != nil {
			logger.Error().Err(err).Msg("Lead fetch failed")
		} else {
			res.Leads = leads
			if err := store.WriteLeadsCSV(p.cfg.Files.Path(p.cfg.Files.LeadsExport), leads); err != nil {
				return nil, err
			}
		}

		executions, err = p.executions.FetchSince(ctx, start)
		if err != nil {
			logger.Error().Err(err).Msg("Execution fetch failed")
		} else {
			haveExecutions = true
			if err := store.WriteRawExecutionsCSV(p.cfg.Files.Path(p.cfg.Files.RawExecutions), executions); err != nil {
				return nil, err
			}
		}
	}

	if !opts.SkipAnalysis {
		if !haveExecutions {
			loaded, err := store.ReadRawExecutionsCSV(p.cfg.Files.Path(p.cfg.Files.RawExecutions))
			if err != nil {
				logger.Error().Err(err).Msg("No raw executions to analyze")
			} else {
				executions = loaded
				haveExecutions = true
			}
		}

		if haveExecutions {
			res.Records, res.Skipped = extract.Run(executions)
			extractedPath := p.cfg.Files.Path(p.cfg.Files.Extracted)
			if err := store.WriteExtractedCSV(extractedPath, res.Records); err != nil {
				return nil, err
			}
			if err := store.WriteJSON(jsonName(extractedPath), res.Records); err != nil {
				return nil, err
			}

			res.Profiles = analyze.Aggregate(res.Records, start)
			analysisPath := p.cfg.Files.Path(p.cfg.Files.UserAnalysis)
			if err := store.WriteProfilesCSV(analysisPath, res.Profiles); err != nil {
				return nil, err
			}
			if err := store.WriteJSON(jsonName(analysisPath), res.Profiles); err != nil {
				return nil, err
			}

			res.Report = report.Build(res.Profiles, cutoff)
			if err := store.WriteReportCSV(p.cfg.Files.Path(p.cfg.Files.WindowedReport), res.Report.Profiles); err != nil {
				return nil, err
			}
		}
	}

	if missing := p.MissingArtifacts(); len(missing) > 0 {
		return res, fmt.Errorf("pipeline finished with missing artifacts: %s", strings.Join(missing, ", "))
	}

	logger.Info().Int("leads", len(res.Leads)).Int("records", len(res.Records)).
		Int("skipped", len(res.Skipped)).Msg("Pipeline finished")
	return res, nil
}

// MissingArtifacts lists the expected artifact files that do not exist.
func (p *Pipeline) MissingArtifacts() []string {
	var missing []string
	for _, name := range []string{
		p.cfg.Files.LeadsExport,
		p.cfg.Files.RawExecutions,
		p.cfg.Files.Extracted,
		p.cfg.Files.UserAnalysis,
		p.cfg.Files.WindowedReport,
	} {
		if _, err := os.Stat(p.cfg.Files.Path(name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

func jsonName(csvPath string) string {
	return strings.TrimSuffix(csvPath, ".csv") + ".json"
}
