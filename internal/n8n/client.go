package n8n

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Client pages through the n8n executions API for one workflow.
type Client struct {
	baseURL    string
	apiKey     string
	workflowID string
	pageSize   int
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, workflowID string, pageSize int, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		workflowID: workflowID,
		pageSize:   pageSize,
		httpClient: client,
	}
}

// FetchAll collects every successful execution of the workflow across all
// pages. A cursor that repeats aborts the walk: it means the server is
// handing back the same page forever.
func (c *Client) FetchAll(ctx context.Context) ([]Execution, error) {
	var all []Execution
	cursor := ""
	seen := make(map[string]struct{})
	page := 1

	for {
		executions, next, err := c.fetchPage(ctx, cursor)
		if err != nil {
			return all, err
		}
		all = append(all, executions...)
		log.Info().Int("page", page).Int("total", len(all)).Msg("Fetched executions page")

		if next == "" {
			break
		}
		if _, dup := seen[next]; dup {
			return all, fmt.Errorf("execution API returned repeated cursor %q", next)
		}
		seen[next] = struct{}{}
		cursor = next
		page++
	}

	return all, nil
}

// FetchSince fetches all executions and drops those started before start.
// Executions with an unparsable start timestamp are dropped with a warning.
func (c *Client) FetchSince(ctx context.Context, start time.Time) ([]Execution, error) {
	all, err := c.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]Execution, 0, len(all))
	for _, exec := range all {
		startedAt, err := time.Parse(time.RFC3339, exec.StartedAt)
		if err != nil {
			log.Warn().Str("execution_id", exec.ID.String()).Str("started_at", exec.StartedAt).
				Msg("Skipping execution with unparsable start timestamp")
			continue
		}
		if !startedAt.Before(start) {
			filtered = append(filtered, exec)
		}
	}

	log.Info().Int("total", len(all)).Int("kept", len(filtered)).
		Time("start", start).Msg("Filtered executions by start date")
	return filtered, nil
}

func (c *Client) fetchPage(ctx context.Context, cursor string) ([]Execution, string, error) {
	params := url.Values{
		"includeData": {"true"},
		"status":      {"success"},
		"workflowId":  {c.workflowID},
		"limit":       {strconv.Itoa(c.pageSize)},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build executions request: %w", err)
	}
	req.Header.Set("X-N8N-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch executions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read executions response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("execution endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var page executionPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("parse executions response: %w", err)
	}

	return page.Data, page.NextCursor, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
