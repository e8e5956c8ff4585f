package extract

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adk-sentryskin/creatio-analysis/internal/n8n"
)

func execution(id int, startedAt string, data string) n8n.Execution {
	return n8n.Execution{
		ID:         json.Number(fmt.Sprint(id)),
		WorkflowID: "V7n2R2x0bj99pQhK",
		Status:     "success",
		StartedAt:  startedAt,
		Data:       json.RawMessage(data),
	}
}

func payload(webhookItem, responseItem string) string {
	runData := "{"
	if webhookItem != "" {
		runData += fmt.Sprintf(`"Webhook":[{"data":{"main":[[{"json":%s}]]}}]`, webhookItem)
	}
	if responseItem != "" {
		if webhookItem != "" {
			runData += ","
		}
		runData += fmt.Sprintf(`"HTTP Request1":[{"data":{"main":[[{"json":%s}]]}}]`, responseItem)
	}
	runData += "}"
	return fmt.Sprintf(`{"resultData":{"runData":%s}}`, runData)
}

func TestRunExtractsFields(t *testing.T) {
	data := payload(
		`{"headers":{"user-agent":"Mozilla/5.0 Test"},"body":{"user_id":"chat-1","thread_id":"thread-1"}}`,
		`{"conversation_stage":"qualified"}`,
	)
	records, skipped := Run([]n8n.Execution{execution(1, "2025-10-08T12:00:00.000Z", data)})

	require.Len(t, records, 1)
	assert.Empty(t, skipped)

	rec := records[0]
	assert.Equal(t, "1", rec.ExecutionID)
	assert.Equal(t, "Mozilla/5.0 Test", rec.UserAgent)
	assert.Equal(t, "chat-1", rec.ChatID)
	assert.Equal(t, "thread-1", rec.ThreadID)
	assert.Equal(t, "qualified", rec.ConversationStage)
	assert.Equal(t, "success", rec.WorkflowStatus)
	assert.Equal(t, 2025, rec.Timestamp.Year())
}

func TestRunCapitalizedHeaderFallback(t *testing.T) {
	data := payload(`{"headers":{"User-Agent":"Capitalized/1.0"},"body":{}}`, "")
	records, _ := Run([]n8n.Execution{execution(2, "2025-10-08T12:00:00Z", data)})
	require.Len(t, records, 1)
	assert.Equal(t, "Capitalized/1.0", records[0].UserAgent)
}

func TestRunMissingNodesYieldEmptyFields(t *testing.T) {
	data := `{"resultData":{"runData":{"SomeOtherNode":[]}}}`
	records, skipped := Run([]n8n.Execution{execution(3, "2025-10-08T12:00:00Z", data)})

	require.Len(t, records, 1)
	assert.Empty(t, skipped)
	assert.Empty(t, records[0].UserAgent)
	assert.Empty(t, records[0].ChatID)
	assert.Empty(t, records[0].ConversationStage)
}

func TestRunEmptyPayload(t *testing.T) {
	records, skipped := Run([]n8n.Execution{execution(4, "2025-10-08T12:00:00Z", "")})
	require.Len(t, records, 1)
	assert.Empty(t, skipped)
}

func TestRunSkipsBadExecutions(t *testing.T) {
	bad := []n8n.Execution{
		execution(5, "not-a-timestamp", ""),
		execution(6, "2025-10-08T12:00:00Z", `{"resultData":`),
	}
	good := execution(7, "2025-10-08T12:00:00Z", payload(`{"headers":{},"body":{"user_id":"u7"}}`, ""))

	records, skipped := Run(append(bad, good))

	require.Len(t, records, 1)
	assert.Equal(t, "u7", records[0].ChatID)
	require.Len(t, skipped, 2)
	assert.Equal(t, "5", skipped[0].ExecutionID)
	assert.Contains(t, skipped[0].Reason, "startedAt")
	assert.Equal(t, "6", skipped[1].ExecutionID)
}

func TestRunNonStringFieldsIgnored(t *testing.T) {
	data := payload(`{"headers":{"user-agent":42},"body":{"user_id":123,"thread_id":"t-8"}}`, "")
	records, _ := Run([]n8n.Execution{execution(8, "2025-10-08T12:00:00Z", data)})
	require.Len(t, records, 1)
	assert.Empty(t, records[0].UserAgent)
	assert.Empty(t, records[0].ChatID)
	assert.Equal(t, "t-8", records[0].ThreadID)
}

func TestUserIdentifier(t *testing.T) {
	assert.Equal(t, "c", Record{ChatID: "c", ThreadID: "t"}.UserIdentifier())
	assert.Equal(t, "t", Record{ThreadID: "t"}.UserIdentifier())
	assert.Empty(t, Record{}.UserIdentifier())
}
