package health

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adk-sentryskin/creatio-analysis/internal/config"
	"github.com/adk-sentryskin/creatio-analysis/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Files.Dir = t.TempDir()
	// An unlikely port so the dashboard probe fails fast instead of finding
	// an unrelated local service.
	cfg.Dashboard.Port = 1
	return cfg
}

func writeAllArtifacts(t *testing.T, cfg *config.Config) {
	t.Helper()
	require.NoError(t, store.WriteLeadsCSV(cfg.Files.Path(cfg.Files.LeadsExport), nil))
	require.NoError(t, store.WriteRawExecutionsCSV(cfg.Files.Path(cfg.Files.RawExecutions), nil))
	require.NoError(t, store.WriteExtractedCSV(cfg.Files.Path(cfg.Files.Extracted), nil))
	require.NoError(t, store.WriteProfilesCSV(cfg.Files.Path(cfg.Files.UserAnalysis), nil))
	require.NoError(t, store.WriteReportCSV(cfg.Files.Path(cfg.Files.WindowedReport), nil))
}

func TestCheckPassesWithFreshArtifacts(t *testing.T) {
	cfg := testConfig(t)
	writeAllArtifacts(t, cfg)

	var buf bytes.Buffer
	err := Check(&buf, cfg)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "All checks passed")
}

func TestCheckFailsOnMissingArtifacts(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	err := Check(&buf, cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, buf.String(), cfg.Files.LeadsExport)
}

func TestCountRows(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, store.WriteLeadsCSV(cfg.Files.Path(cfg.Files.LeadsExport), nil))

	rows, err := countRows(cfg.Files.Path(cfg.Files.LeadsExport))
	require.NoError(t, err)
	assert.Zero(t, rows)
}
