package dashboard

import (
	"sort"

	"github.com/adk-sentryskin/creatio-analysis/internal/creatio"
)

// Fixed palettes. Node and link colors are assigned by category index modulo
// the palette length; purely cosmetic.
var (
	methodPalette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FECA57", "#FF9FF3", "#54A0FF"}
	sourcePalette = []string{"#FF4757", "#2ED573", "#1E90FF", "#FFA502", "#FF6348", "#9C88FF", "#FF6B9D"}
	statusPalette = []string{
		"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FECA57", "#FF9FF3", "#54A0FF",
		"#5F27CD", "#00D2D3", "#FF9F43", "#FF4757", "#2ED573", "#1E90FF", "#FFA502", "#FF6348",
	}
)

// NamedCount is one slice of a pie or one bar of a bar chart.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Heatmap is a rows-by-columns count matrix.
type Heatmap struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Values  [][]int  `json:"values"`
}

// ComparisonRow compares one status between two registration methods, in
// percent of each method's leads.
type ComparisonRow struct {
	Status           string  `json:"status"`
	LandingPageCount int     `json:"landing_page_count"`
	LandingPagePct   float64 `json:"landing_page_pct"`
	SentrySkinCount  int     `json:"sentryskin_count"`
	SentrySkinPct    float64 `json:"sentryskin_pct"`
}

// Sankey is the method → form source → status flow diagram.
type Sankey struct {
	Nodes      []string `json:"nodes"`
	NodeColors []string `json:"node_colors"`
	Sources    []int    `json:"sources"`
	Targets    []int    `json:"targets"`
	Values     []int    `json:"values"`
	LinkColors []string `json:"link_colors"`
}

// Charts bundles everything the dashboard page renders for the lead section.
type Charts struct {
	RegisterMethods []NamedCount    `json:"register_methods"`
	Statuses        []NamedCount    `json:"statuses"`
	FormSources     []NamedCount    `json:"form_sources"` // sentryskin leads only
	Heatmap         Heatmap         `json:"heatmap"`
	Comparison      []ComparisonRow `json:"comparison"`
}

func buildCharts(leads []creatio.Lead) Charts {
	var sentryskin []creatio.Lead
	for _, l := range leads {
		if l.RegisterMethod == "sentryskin" {
			sentryskin = append(sentryskin, l)
		}
	}

	return Charts{
		RegisterMethods: countBy(leads, func(l creatio.Lead) string { return l.RegisterMethod }),
		Statuses:        countBy(leads, func(l creatio.Lead) string { return l.Status }),
		FormSources:     countBy(sentryskin, func(l creatio.Lead) string { return l.FormSource }),
		Heatmap:         buildHeatmap(leads),
		Comparison:      buildComparison(leads),
	}
}

// countBy tallies leads by key, sorted by count descending then name.
func countBy(leads []creatio.Lead, key func(creatio.Lead) string) []NamedCount {
	counts := make(map[string]int)
	for _, l := range leads {
		counts[key(l)]++
	}
	out := make([]NamedCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NamedCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func buildHeatmap(leads []creatio.Lead) Heatmap {
	methods := distinct(leads, func(l creatio.Lead) string { return l.RegisterMethod })
	statuses := distinct(leads, func(l creatio.Lead) string { return l.Status })

	values := make([][]int, len(methods))
	index := make(map[[2]string]int)
	for _, l := range leads {
		index[[2]string{l.RegisterMethod, l.Status}]++
	}
	for i, m := range methods {
		row := make([]int, len(statuses))
		for j, s := range statuses {
			row[j] = index[[2]string{m, s}]
		}
		values[i] = row
	}

	return Heatmap{Rows: methods, Columns: statuses, Values: values}
}

func buildComparison(leads []creatio.Lead) []ComparisonRow {
	landingTotal, skinTotal := 0, 0
	landing := make(map[string]int)
	skin := make(map[string]int)

	for _, l := range leads {
		switch l.RegisterMethod {
		case "Landing page":
			landingTotal++
			landing[l.Status]++
		case "sentryskin":
			skinTotal++
			skin[l.Status]++
		}
	}
	if landingTotal == 0 && skinTotal == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var rows []ComparisonRow
	add := func(status string) {
		if _, ok := seen[status]; ok {
			return
		}
		seen[status] = struct{}{}
		row := ComparisonRow{
			Status:           status,
			LandingPageCount: landing[status],
			SentrySkinCount:  skin[status],
		}
		if landingTotal > 0 {
			row.LandingPagePct = float64(row.LandingPageCount) / float64(landingTotal) * 100
		}
		if skinTotal > 0 {
			row.SentrySkinPct = float64(row.SentrySkinCount) / float64(skinTotal) * 100
		}
		rows = append(rows, row)
	}
	for status := range landing {
		add(status)
	}
	for status := range skin {
		add(status)
	}

	// Most contested statuses first.
	sort.Slice(rows, func(i, j int) bool {
		return maxPct(rows[i]) > maxPct(rows[j])
	})
	return rows
}

func maxPct(r ComparisonRow) float64 {
	if r.LandingPagePct > r.SentrySkinPct {
		return r.LandingPagePct
	}
	return r.SentrySkinPct
}

func buildSankey(leads []creatio.Lead) Sankey {
	methods := distinct(leads, func(l creatio.Lead) string { return l.RegisterMethod })
	sources := distinct(leads, func(l creatio.Lead) string { return l.FormSource })
	statuses := distinct(leads, func(l creatio.Lead) string { return l.Status })

	var s Sankey
	nodeIndex := make(map[string]int)
	addNode := func(name, clr string) {
		nodeIndex[name] = len(s.Nodes)
		s.Nodes = append(s.Nodes, name)
		s.NodeColors = append(s.NodeColors, clr)
	}
	for i, m := range methods {
		addNode(m, methodPalette[i%len(methodPalette)])
	}
	for i, src := range sources {
		addNode(src, sourcePalette[i%len(sourcePalette)])
	}
	for i, st := range statuses {
		addNode(st, statusPalette[i%len(statusPalette)])
	}

	methodToSource := make(map[[2]string]int)
	sourceToStatus := make(map[[2]string]int)
	for _, l := range leads {
		methodToSource[[2]string{l.RegisterMethod, l.FormSource}]++
		sourceToStatus[[2]string{l.FormSource, l.Status}]++
	}

	for i, m := range methods {
		for _, src := range sources {
			count := methodToSource[[2]string{m, src}]
			if count == 0 {
				continue
			}
			s.Sources = append(s.Sources, nodeIndex[m])
			s.Targets = append(s.Targets, nodeIndex[src])
			s.Values = append(s.Values, count)
			s.LinkColors = append(s.LinkColors, methodPalette[i%len(methodPalette)])
		}
	}
	for i, src := range sources {
		for _, st := range statuses {
			count := sourceToStatus[[2]string{src, st}]
			if count == 0 {
				continue
			}
			s.Sources = append(s.Sources, nodeIndex[src])
			s.Targets = append(s.Targets, nodeIndex[st])
			s.Values = append(s.Values, count)
			s.LinkColors = append(s.LinkColors, sourcePalette[i%len(sourcePalette)])
		}
	}

	return s
}

// distinct keeps first-seen order so palette assignment is stable for a
// given dataset.
func distinct(leads []creatio.Lead, key func(creatio.Lead) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range leads {
		k := key(l)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
