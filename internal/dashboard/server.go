// Package dashboard serves the lead and conversation analytics web UI. The
// page itself is a single embedded HTML file rendering Plotly charts from
// the JSON API below.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/adk-sentryskin/creatio-analysis/internal/analyze"
	"github.com/adk-sentryskin/creatio-analysis/internal/config"
	"github.com/adk-sentryskin/creatio-analysis/internal/creatio"
	"github.com/adk-sentryskin/creatio-analysis/internal/pipeline"
	"github.com/adk-sentryskin/creatio-analysis/internal/store"
)

// Server owns the HTTP API and a short-lived lead cache so chart reloads and
// filter changes do not hammer the CRM.
type Server struct {
	cfg   *config.Config
	pipe  *pipeline.Pipeline
	leads *creatio.LeadClient

	mu        sync.Mutex
	cached    []creatio.Lead
	fetchedAt time.Time

	refreshMu sync.Mutex
}

func NewServer(cfg *config.Config) *Server {
	httpClient := &http.Client{}
	tokens := creatio.NewTokenProvider(cfg.Creatio.TokenURL, cfg.Creatio.ClientID, cfg.Creatio.ClientSecret, httpClient)
	return &Server{
		cfg:   cfg,
		pipe:  pipeline.New(cfg),
		leads: creatio.NewLeadClient(cfg.Creatio.ODataURL, tokens, cfg.Mappings, httpClient),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/health", handleHealth)
	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/leads", s.handleLeads)
	r.Get("/api/charts", s.handleCharts)
	r.Get("/api/sankey", s.handleSankey)
	r.Get("/api/users", s.handleUsers)
	r.Post("/api/refresh", s.handleRefresh)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Dashboard.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Dashboard.Port).Msg("Starting dashboard server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down dashboard server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadLeads returns the lead set for chart building: the cache while it is
// fresh, a live CRM fetch otherwise, and the on-disk export as a last resort
// when the CRM is unreachable.
func (s *Server) loadLeads(ctx context.Context) ([]creatio.Lead, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < s.cfg.Dashboard.CacheTTL {
		return s.cached, "cache", nil
	}

	cutoff, err := s.cfg.Analysis.Cutoff()
	if err != nil {
		return nil, "", err
	}

	leads, err := s.leads.FetchByCreatedSince(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("Lead fetch failed, falling back to export file")
		leads, err = store.ReadLeadsCSV(s.cfg.Files.Path(s.cfg.Files.LeadsExport))
		if err != nil {
			return nil, "", fmt.Errorf("no lead data available: %w", err)
		}
		return leads, "file", nil
	}

	s.cached = leads
	s.fetchedAt = time.Now()
	return leads, "api", nil
}

// invalidate drops the lead cache so the next request refetches.
func (s *Server) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	leads, source, err := s.loadLeads(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	leads = applyFilters(leads, r)

	sentryskin, landingPage, enrolled := 0, 0, 0
	for _, l := range leads {
		switch l.RegisterMethod {
		case "sentryskin":
			sentryskin++
		case "Landing page":
			landingPage++
		}
		if l.Status == "Enrolled/Confirm" {
			enrolled++
		}
	}

	s.mu.Lock()
	fetchedAt := s.fetchedAt
	s.mu.Unlock()

	respondJSON(w, map[string]interface{}{
		"total_leads":        len(leads),
		"sentryskin_leads":   sentryskin,
		"landing_page_leads": landingPage,
		"enrolled_leads":     enrolled,
		"source":             source,
		"fetched_at":         fetchedAt,
		"cutoff":             s.cfg.Analysis.CutoffDate,
	})
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	leads, _, err := s.loadLeads(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	leads = applyFilters(leads, r)
	if leads == nil {
		leads = []creatio.Lead{}
	}
	respondJSON(w, leads)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	leads, _, err := s.loadLeads(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, buildCharts(applyFilters(leads, r)))
}

func (s *Server) handleSankey(w http.ResponseWriter, r *http.Request) {
	leads, _, err := s.loadLeads(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, buildSankey(applyFilters(leads, r)))
}

// handleUsers serves the windowed conversation report from the on-disk
// artifact written by the analysis stages.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := store.ReadReportCSV(s.cfg.Files.Path(s.cfg.Files.WindowedReport))
	if err != nil {
		respondError(w, http.StatusNotFound,
			fmt.Errorf("windowed report not available, run the pipeline first: %w", err))
		return
	}
	respondJSON(w, map[string]interface{}{
		"profiles": profiles,
		"tallies":  analyze.Tally(profiles),
	})
}

// handleRefresh re-runs the whole pipeline in-process. Only one refresh runs
// at a time; a second request gets 409 instead of queueing.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.refreshMu.TryLock() {
		respondError(w, http.StatusConflict, fmt.Errorf("refresh already in progress"))
		return
	}
	defer s.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Dashboard.RefreshTimeout)
	defer cancel()

	res, err := s.pipe.Run(ctx, pipeline.Options{})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.invalidate()

	respondJSON(w, map[string]interface{}{
		"success": true,
		"run_id":  res.RunID,
		"leads":   len(res.Leads),
		"records": len(res.Records),
		"skipped": len(res.Skipped),
	})
}

// applyFilters narrows leads to the multi-select filter values in the query
// string. Absent parameters leave their dimension unfiltered.
func applyFilters(leads []creatio.Lead, r *http.Request) []creatio.Lead {
	methods := queryList(r, "methods")
	sources := queryList(r, "sources")
	statuses := queryList(r, "statuses")
	if methods == nil && sources == nil && statuses == nil {
		return leads
	}

	var out []creatio.Lead
	for _, l := range leads {
		if methods != nil && !methods[l.RegisterMethod] {
			continue
		}
		if sources != nil && !sources[l.FormSource] {
			continue
		}
		if statuses != nil && !statuses[l.Status] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// queryList reads a multi-valued parameter; each occurrence may itself be a
// comma-separated list. Returns nil when the parameter is absent.
func queryList(r *http.Request, name string) map[string]bool {
	values := r.URL.Query()[name]
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				set[part] = true
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": err.Error(),
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
