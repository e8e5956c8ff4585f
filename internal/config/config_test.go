package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://christinevalmy-is.creatio.com/connect/token", cfg.Creatio.TokenURL)
	assert.Equal(t, "https://sentryskin.app.n8n.cloud/api/v1/executions", cfg.SentrySkin.BaseURL)
	assert.Equal(t, "V7n2R2x0bj99pQhK", cfg.SentrySkin.WorkflowID)
	assert.Equal(t, 100, cfg.SentrySkin.PageSize)
	assert.Equal(t, 8501, cfg.Dashboard.Port)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, "leads_export.csv", cfg.Files.LeadsExport)

	assert.Len(t, cfg.Mappings.Language, 2)
	assert.Len(t, cfg.Mappings.Location, 2)
	assert.Len(t, cfg.Mappings.RegisterMethod, 7)
	assert.Len(t, cfg.Mappings.Status, 29)
	assert.Equal(t, "sentryskin", cfg.Mappings.RegisterMethod["7928af33-a08e-443f-b949-4ba4ab251617"])
}

func TestLoadAnalysisDates(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	start, err := cfg.Analysis.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC), start)

	cutoff, err := cfg.Analysis.Cutoff()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC), cutoff)
}

func TestLoadEnvSecretsOverride(t *testing.T) {
	t.Setenv("CREATIO_CLIENT_ID", "env-id")
	t.Setenv("CREATIO_CLIENT_SECRET", "env-secret")
	t.Setenv("SENTRYSKIN_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Creatio.ClientID)
	assert.Equal(t, "env-secret", cfg.Creatio.ClientSecret)
	assert.Equal(t, "env-key", cfg.SentrySkin.APIKey)
}

func TestLoadFileOverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_WORKFLOW", "wf-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sentryskin:
  workflow_id: "${TEST_WORKFLOW}"
dashboard:
  port: 9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wf-from-env", cfg.SentrySkin.WorkflowID)
	assert.Equal(t, 9000, cfg.Dashboard.Port)
	// Unset values fall back to code defaults.
	assert.Equal(t, 100, cfg.SentrySkin.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.RefreshTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFilesPath(t *testing.T) {
	f := FilesConfig{Dir: "."}
	assert.Equal(t, "report.csv", f.Path("report.csv"))

	f.Dir = "data"
	assert.Equal(t, filepath.Join("data", "report.csv"), f.Path("report.csv"))
}
