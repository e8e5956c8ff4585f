// Package report produces the date-windowed activity report: the subset of
// user profiles still active after a cutoff instant, ordered by conversation
// volume.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/adk-sentryskin/creatio-analysis/internal/analyze"
)

// Report is the windowed subset plus its summary numbers.
type Report struct {
	Cutoff      time.Time              `json:"cutoff"`
	Profiles    []*analyze.UserProfile `json:"profiles"`
	Tallies     analyze.Tallies        `json:"tallies"`
	TotalBefore int                    `json:"total_users_before_filter"`
}

// Build filters profiles to those whose last interaction is strictly after
// cutoff and sorts them by conversation count, descending. A profile whose
// last interaction equals the cutoff exactly is out of the window. An empty
// result is a normal outcome.
func Build(profiles []*analyze.UserProfile, cutoff time.Time) *Report {
	var active []*analyze.UserProfile
	for _, p := range profiles {
		if p.LastInteraction.After(cutoff) {
			active = append(active, p)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].ConversationCount > active[j].ConversationCount
	})

	log.Info().Int("active", len(active)).Int("total", len(profiles)).
		Time("cutoff", cutoff).Msg("Built windowed report")

	return &Report{
		Cutoff:      cutoff,
		Profiles:    active,
		Tallies:     analyze.Tally(active),
		TotalBefore: len(profiles),
	}
}

// AverageConversations returns mean conversations per active user.
func (r *Report) AverageConversations() float64 {
	if len(r.Profiles) == 0 {
		return 0
	}
	return float64(r.Tallies.TotalRecords) / float64(len(r.Profiles))
}

// MaxConversations returns the highest conversation count in the window.
func (r *Report) MaxConversations() int {
	if len(r.Profiles) == 0 {
		return 0
	}
	return r.Profiles[0].ConversationCount
}

// Print writes the console summary: headline figures, label distributions and
// the top 10 most active users.
func (r *Report) Print(w io.Writer) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)

	header.Fprintf(w, "Active users after %s\n", r.Cutoff.Format("2006-01-02"))
	fmt.Fprintln(w, strings.Repeat("-", 60))

	if len(r.Profiles) == 0 {
		fmt.Fprintln(w, "No users with interactions after the cutoff.")
		return
	}

	fmt.Fprintf(w, "Total users:         %d (of %d)\n", len(r.Profiles), r.TotalBefore)
	fmt.Fprintf(w, "Total conversations: %d\n", r.Tallies.TotalRecords)
	fmt.Fprintf(w, "Avg per user:        %.1f\n", r.AverageConversations())
	fmt.Fprintf(w, "Max conversations:   %d\n", r.MaxConversations())

	printDistribution(w, label, "Devices", r.Tallies.Devices, len(r.Profiles))
	printDistribution(w, label, "Browsers", r.Tallies.Browsers, len(r.Profiles))
	printDistribution(w, label, "Operating systems", r.Tallies.OperatingSystems, len(r.Profiles))

	header.Fprintln(w, "\nTop 10 most active users")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for i, p := range r.Profiles {
		if i >= 10 {
			break
		}
		fmt.Fprintf(w, "%2d. %s\n", i+1, p.UserID)
		fmt.Fprintf(w, "    conversations: %d\n", p.ConversationCount)
		fmt.Fprintf(w, "    first: %s  last: %s\n",
			p.FirstInteraction.UTC().Format("2006-01-02 15:04:05"),
			p.LastInteraction.UTC().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "    devices: %s  browsers: %s  os: %s\n",
			strings.Join(p.Devices, ", "),
			strings.Join(p.Browsers, ", "),
			strings.Join(p.OperatingSystems, ", "))
	}
}

func printDistribution(w io.Writer, label *color.Color, title string, counts map[string]int, total int) {
	if len(counts) == 0 {
		return
	}
	label.Fprintf(w, "\n%s:\n", title)

	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	for _, e := range entries {
		fmt.Fprintf(w, "  %-10s %d users (%.1f%%)\n", e.name, e.count, float64(e.count)/float64(total)*100)
	}
}
