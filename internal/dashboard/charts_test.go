package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adk-sentryskin/creatio-analysis/internal/creatio"
)

func lead(method, source, status string) creatio.Lead {
	return creatio.Lead{RegisterMethod: method, FormSource: source, Status: status}
}

func sampleLeads() []creatio.Lead {
	return []creatio.Lead{
		lead("sentryskin", "chat widget", "New"),
		lead("sentryskin", "chat widget", "Contacted"),
		lead("sentryskin", "landing form", "New"),
		lead("Landing page", "", "New"),
		lead("Landing page", "", "Converted"),
		lead("Chat", "", "New"),
	}
}

func TestCountBySortsByCountDesc(t *testing.T) {
	counts := countBy(sampleLeads(), func(l creatio.Lead) string { return l.RegisterMethod })

	require.Len(t, counts, 3)
	assert.Equal(t, NamedCount{Name: "sentryskin", Count: 3}, counts[0])
	assert.Equal(t, NamedCount{Name: "Landing page", Count: 2}, counts[1])
	assert.Equal(t, NamedCount{Name: "Chat", Count: 1}, counts[2])
}

func TestBuildChartsFormSourcesOnlySentryskin(t *testing.T) {
	charts := buildCharts(sampleLeads())

	total := 0
	for _, s := range charts.FormSources {
		total += s.Count
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, "chat widget", charts.FormSources[0].Name)
}

func TestBuildHeatmap(t *testing.T) {
	hm := buildHeatmap(sampleLeads())

	require.Contains(t, hm.Rows, "sentryskin")
	require.Contains(t, hm.Columns, "New")

	// Cell values are the method/status co-occurrence counts.
	rowIdx, colIdx := -1, -1
	for i, r := range hm.Rows {
		if r == "sentryskin" {
			rowIdx = i
		}
	}
	for j, c := range hm.Columns {
		if c == "New" {
			colIdx = j
		}
	}
	assert.Equal(t, 2, hm.Values[rowIdx][colIdx])
}

func TestBuildComparison(t *testing.T) {
	rows := buildComparison(sampleLeads())
	require.NotEmpty(t, rows)

	byStatus := make(map[string]ComparisonRow)
	for _, r := range rows {
		byStatus[r.Status] = r
	}

	newRow := byStatus["New"]
	assert.Equal(t, 2, newRow.SentrySkinCount)
	assert.InDelta(t, 200.0/3.0, newRow.SentrySkinPct, 0.001)
	assert.Equal(t, 1, newRow.LandingPageCount)
	assert.InDelta(t, 50.0, newRow.LandingPagePct, 0.001)

	conv := byStatus["Converted"]
	assert.Zero(t, conv.SentrySkinCount)
	assert.Equal(t, 1, conv.LandingPageCount)
}

func TestBuildComparisonEmpty(t *testing.T) {
	assert.Nil(t, buildComparison([]creatio.Lead{lead("Chat", "", "New")}))
}

func TestBuildSankey(t *testing.T) {
	s := buildSankey(sampleLeads())

	// methods + sources (the empty source is its own node) + statuses
	assert.Len(t, s.Nodes, 3+3+3)
	assert.Len(t, s.NodeColors, len(s.Nodes))
	require.Equal(t, len(s.Sources), len(s.Targets))
	require.Equal(t, len(s.Sources), len(s.Values))
	require.Equal(t, len(s.Sources), len(s.LinkColors))

	// Every link endpoint is a valid node index, and every link carries flow.
	for i := range s.Sources {
		assert.Less(t, s.Sources[i], len(s.Nodes))
		assert.Less(t, s.Targets[i], len(s.Nodes))
		assert.Greater(t, s.Values[i], 0)
	}

	// Flow out of the method layer equals the lead count.
	methodFlow := 0
	for i, src := range s.Sources {
		if src < 3 { // method nodes come first
			methodFlow += s.Values[i]
		}
	}
	assert.Equal(t, len(sampleLeads()), methodFlow)
}

func TestBuildChartsEmpty(t *testing.T) {
	charts := buildCharts(nil)
	assert.Empty(t, charts.RegisterMethods)
	assert.Empty(t, charts.Heatmap.Rows)

	s := buildSankey(nil)
	assert.Empty(t, s.Nodes)
}
