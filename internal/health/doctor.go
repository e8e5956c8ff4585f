// Package health implements the doctor command: a local sanity check of the
// pipeline artifacts, credentials and the dashboard endpoint.
package health

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/adk-sentryskin/creatio-analysis/internal/config"
)

const (
	maxDataAge = 24 * time.Hour
	probeDelay = 5 * time.Second
	smallFile  = 100 // bytes; anything below this is suspicious for a CSV
)

var (
	okStatus   = color.New(color.FgGreen)
	warnStatus = color.New(color.FgYellow)
	failStatus = color.New(color.FgRed)
	infoStatus = color.New(color.FgBlue)
	header     = color.New(color.FgCyan, color.Bold)
)

// Check runs every probe, printing findings to w. The returned error is
// non-nil when an essential artifact is missing or unreadable, so callers can
// turn it into a non-zero exit.
func Check(w io.Writer, cfg *config.Config) error {
	header.Fprintln(w, "HEALTH CHECK")
	fmt.Fprintf(w, "Checked at: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	header.Fprintln(w, "Data artifacts")
	artifacts := []struct {
		name  string
		label string
	}{
		{cfg.Files.LeadsExport, "Creatio leads export"},
		{cfg.Files.RawExecutions, "Raw workflow executions"},
		{cfg.Files.Extracted, "Extracted fields"},
		{cfg.Files.UserAnalysis, "User analysis"},
		{cfg.Files.WindowedReport, "Windowed report"},
	}

	failures := 0
	for _, a := range artifacts {
		if !checkArtifact(w, cfg.Files.Path(a.name), a.label) {
			failures++
		}
	}

	fmt.Fprintln(w)
	header.Fprintln(w, "Credentials")
	checkCredential(w, "Creatio client id", cfg.Creatio.ClientID)
	checkCredential(w, "Creatio client secret", cfg.Creatio.ClientSecret)
	checkCredential(w, "SentrySkin API key", cfg.SentrySkin.APIKey)

	fmt.Fprintln(w)
	header.Fprintln(w, "Dashboard")
	checkDashboard(w, cfg.Dashboard.Port)

	fmt.Fprintln(w)
	if failures > 0 {
		failStatus.Fprintf(w, "%d artifact check(s) failed; run the pipeline to regenerate\n", failures)
		return fmt.Errorf("%d essential artifacts missing or unreadable", failures)
	}
	okStatus.Fprintln(w, "All checks passed")
	return nil
}

func checkArtifact(w io.Writer, path, label string) bool {
	info, err := os.Stat(path)
	if err != nil {
		failStatus.Fprintf(w, "  %s missing: %s\n", label, path)
		return false
	}

	age := time.Since(info.ModTime())
	if age > maxDataAge {
		warnStatus.Fprintf(w, "  %s is stale: %.1fh old (max %.0fh)\n", label, age.Hours(), maxDataAge.Hours())
	} else {
		okStatus.Fprintf(w, "  %s is fresh (%.1fh old)\n", label, age.Hours())
	}

	if info.Size() < smallFile {
		warnStatus.Fprintf(w, "  %s is very small (%d bytes)\n", label, info.Size())
	}

	rows, err := countRows(path)
	if err != nil {
		failStatus.Fprintf(w, "  %s unreadable: %v\n", label, err)
		return false
	}
	if rows == 0 {
		warnStatus.Fprintf(w, "  %s has no data rows\n", label)
	} else {
		infoStatus.Fprintf(w, "  %s rows: %d\n", label, rows)
	}
	return true
}

// countRows counts CSV records after the header.
func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows := -1 // first record is the header
	for {
		if _, err := r.Read(); err == io.EOF {
			break
		} else if err != nil {
			return 0, err
		}
		rows++
	}
	if rows < 0 {
		rows = 0
	}
	return rows, nil
}

func checkCredential(w io.Writer, label, value string) {
	if value == "" {
		warnStatus.Fprintf(w, "  %s not configured\n", label)
		return
	}
	okStatus.Fprintf(w, "  %s configured\n", label)
}

func checkDashboard(w io.Writer, port int) {
	client := &http.Client{Timeout: probeDelay}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		warnStatus.Fprintf(w, "  Dashboard not reachable on port %d (not running?)\n", port)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		okStatus.Fprintf(w, "  Dashboard healthy on port %d\n", port)
		return
	}
	warnStatus.Fprintf(w, "  Dashboard returned status %d on port %d\n", resp.StatusCode, port)
}
