// Package extract digs conversation metadata out of raw workflow execution
// payloads. The payload is the n8n runData blob: a map from node name to a
// list of per-run node outputs, each wrapping its items under
// data.main[0][0].json.
package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adk-sentryskin/creatio-analysis/internal/n8n"
)

const (
	webhookNode  = "Webhook"
	responseNode = "HTTP Request1"
)

// Record is the flattened per-execution result.
type Record struct {
	ExecutionID       string    `json:"execution_id"`
	WorkflowID        string    `json:"workflow_id"`
	Timestamp         time.Time `json:"timestamp"`
	UserAgent         string    `json:"user_agent"`
	ChatID            string    `json:"chat_id"`
	ThreadID          string    `json:"thread_id"`
	ConversationStage string    `json:"conversation_stage"`
	WorkflowStatus    string    `json:"workflow_status"`
}

// Skip records one execution the extractor could not process.
type Skip struct {
	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason"`
}

// UserIdentifier is the grouping key for aggregation: chat id when present,
// thread id otherwise. Empty when the execution carried neither.
func (r Record) UserIdentifier() string {
	if r.ChatID != "" {
		return r.ChatID
	}
	return r.ThreadID
}

// Run extracts a Record from every execution. Executions whose payload cannot
// be handled are skipped individually; the batch always completes. Missing
// nodes or fields produce empty string fields, not skips.
func Run(executions []n8n.Execution) ([]Record, []Skip) {
	records := make([]Record, 0, len(executions))
	var skipped []Skip

	for _, exec := range executions {
		rec, err := one(exec)
		if err != nil {
			log.Warn().Str("execution_id", exec.ID.String()).Err(err).Msg("Skipping execution")
			skipped = append(skipped, Skip{ExecutionID: exec.ID.String(), Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}

	log.Info().Int("extracted", len(records)).Int("skipped", len(skipped)).Msg("Extraction finished")
	return records, skipped
}

func one(exec n8n.Execution) (rec Record, err error) {
	// runData payloads come from an external system; a malformed blob must
	// cost one record, never the batch.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payload panic: %v", r)
		}
	}()

	rec = Record{
		ExecutionID:    exec.ID.String(),
		WorkflowID:     exec.WorkflowID,
		WorkflowStatus: exec.Status,
	}

	if ts, perr := time.Parse(time.RFC3339, exec.StartedAt); perr == nil {
		rec.Timestamp = ts
	} else {
		return rec, fmt.Errorf("parse startedAt %q: %w", exec.StartedAt, perr)
	}

	if len(exec.Data) == 0 {
		return rec, nil
	}

	var payload struct {
		ResultData struct {
			RunData map[string][]nodeRun `json:"runData"`
		} `json:"resultData"`
	}
	if uerr := json.Unmarshal(exec.Data, &payload); uerr != nil {
		return rec, fmt.Errorf("parse payload: %w", uerr)
	}

	if item := firstItem(payload.ResultData.RunData, webhookNode); item != nil {
		rec.UserAgent = headerValue(item.Headers, "user-agent", "User-Agent")
		rec.ChatID = stringField(item.Body, "user_id")
		rec.ThreadID = stringField(item.Body, "thread_id")
	}

	if item := firstItem(payload.ResultData.RunData, responseNode); item != nil {
		rec.ConversationStage = stringField(item.Extra, "conversation_stage")
	}

	return rec, nil
}

type nodeRun struct {
	Data struct {
		Main [][]struct {
			JSON nodeItem `json:"json"`
		} `json:"main"`
	} `json:"data"`
}

// nodeItem is the captured request/response of one node item. Extra keeps the
// remaining top-level fields so response bodies without the request shape
// (e.g. conversation_stage) stay reachable.
type nodeItem struct {
	Headers map[string]json.RawMessage `json:"headers"`
	Body    map[string]json.RawMessage `json:"body"`
	Extra   map[string]json.RawMessage `json:"-"`
}

func (n *nodeItem) UnmarshalJSON(data []byte) error {
	type alias struct {
		Headers map[string]json.RawMessage `json:"headers"`
		Body    map[string]json.RawMessage `json:"body"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	n.Headers = a.Headers
	n.Body = a.Body
	n.Extra = extra
	return nil
}

// firstItem returns the first item of the first run of the named node, or nil
// when the node, run, or item is absent.
func firstItem(runData map[string][]nodeRun, node string) *nodeItem {
	runs, ok := runData[node]
	if !ok || len(runs) == 0 {
		return nil
	}
	main := runs[0].Data.Main
	if len(main) == 0 || len(main[0]) == 0 {
		return nil
	}
	return &main[0][0].JSON
}

func headerValue(headers map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if v := rawString(headers[key]); v != "" {
			return v
		}
	}
	return ""
}

func stringField(fields map[string]json.RawMessage, key string) string {
	return rawString(fields[key])
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
