package n8n

import "encoding/json"

// Execution is one workflow run as returned by the executions API. Data is
// kept raw: its shape is the per-node runData blob the extractor digs through.
type Execution struct {
	ID         json.Number     `json:"id"`
	WorkflowID string          `json:"workflowId"`
	Status     string          `json:"status"`
	Mode       string          `json:"mode"`
	StartedAt  string          `json:"startedAt"`
	FinishedAt string          `json:"finishedAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type executionPage struct {
	Data       []Execution `json:"data"`
	NextCursor string      `json:"nextCursor"`
}
