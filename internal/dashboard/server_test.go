package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adk-sentryskin/creatio-analysis/internal/analyze"
	"github.com/adk-sentryskin/creatio-analysis/internal/config"
	"github.com/adk-sentryskin/creatio-analysis/internal/creatio"
	"github.com/adk-sentryskin/creatio-analysis/internal/store"
)

// testServer builds a Server whose CRM endpoints are unreachable, backed by
// artifact files in a temp dir, so handlers exercise the file fallback path.
func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Creatio.TokenURL = "http://127.0.0.1:1/token"
	cfg.Creatio.ODataURL = "http://127.0.0.1:1/odata"
	cfg.SentrySkin.BaseURL = "http://127.0.0.1:1/executions"
	cfg.Files.Dir = dir

	return NewServer(cfg), dir
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIndexServesEmbeddedPage(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "plotly")
}

func TestChartsFallBackToExportFile(t *testing.T) {
	s, dir := testServer(t)
	leads := []creatio.Lead{
		{RegisterMethod: "sentryskin", FormSource: "chat widget", Status: "New"},
		{RegisterMethod: "Landing page", Status: "Converted"},
	}
	require.NoError(t, store.WriteLeadsCSV(filepath.Join(dir, s.cfg.Files.LeadsExport), leads))

	rec := get(t, s, "/api/charts")
	require.Equal(t, http.StatusOK, rec.Code)

	var charts Charts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &charts))
	assert.Len(t, charts.RegisterMethods, 2)
}

func TestChartsNoDataAtAll(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/api/charts")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLeadsFiltering(t *testing.T) {
	s, dir := testServer(t)
	leads := []creatio.Lead{
		{RegisterMethod: "sentryskin", Status: "New"},
		{RegisterMethod: "sentryskin", Status: "Converted"},
		{RegisterMethod: "Chat", Status: "New"},
	}
	require.NoError(t, store.WriteLeadsCSV(filepath.Join(dir, s.cfg.Files.LeadsExport), leads))

	rec := get(t, s, "/api/leads?methods=sentryskin&statuses=New,Converted")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []creatio.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	for _, l := range got {
		assert.Equal(t, "sentryskin", l.RegisterMethod)
	}
}

func TestSummaryMetrics(t *testing.T) {
	s, dir := testServer(t)
	leads := []creatio.Lead{
		{RegisterMethod: "sentryskin", Status: "New"},
		{RegisterMethod: "Landing page", Status: "Enrolled/Confirm"},
		{RegisterMethod: "Chat", Status: "Contacted"},
	}
	require.NoError(t, store.WriteLeadsCSV(filepath.Join(dir, s.cfg.Files.LeadsExport), leads))

	rec := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.EqualValues(t, 3, sum["total_leads"])
	assert.EqualValues(t, 1, sum["sentryskin_leads"])
	assert.EqualValues(t, 1, sum["landing_page_leads"])
	assert.EqualValues(t, 1, sum["enrolled_leads"])
	assert.Equal(t, "file", sum["source"])
}

func TestUsersServedFromReportArtifact(t *testing.T) {
	s, dir := testServer(t)
	profiles := []*analyze.UserProfile{
		{
			UserID: "alice", ConversationCount: 4,
			FirstInteraction: time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC),
			LastInteraction:  time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC),
			Devices:          []string{"Mobile"}, Browsers: []string{"Safari"}, OperatingSystems: []string{"iOS"},
		},
	}
	require.NoError(t, store.WriteReportCSV(filepath.Join(dir, s.cfg.Files.WindowedReport), profiles))

	rec := get(t, s, "/api/users")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Profiles []analyze.UserProfile `json:"profiles"`
		Tallies  analyze.Tallies       `json:"tallies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Profiles, 1)
	assert.Equal(t, "alice", resp.Profiles[0].UserID)
	assert.Equal(t, 1, resp.Tallies.Devices["Mobile"])
}

func TestUsersMissingReport(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/api/users")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflights(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/summary", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestQueryList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?x=a,b&x=c&y=", nil)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, queryList(req, "x"))
	assert.Nil(t, queryList(req, "y"))
	assert.Nil(t, queryList(req, "absent"))
}
