// Package store reads and writes the flat-file artifacts the pipeline stages
// produce. Each artifact has a fixed column set; the CSV form is the
// interchange format, the JSON form preserves nested structure where one
// exists.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adk-sentryskin/creatio-analysis/internal/analyze"
	"github.com/adk-sentryskin/creatio-analysis/internal/creatio"
	"github.com/adk-sentryskin/creatio-analysis/internal/extract"
	"github.com/adk-sentryskin/creatio-analysis/internal/n8n"
)

const (
	profileTimeLayout = "2006-01-02 15:04:05 UTC"
	reportTimeLayout  = "2006-01-02 15:04:05"
)

var leadHeader = []string{
	"First_Name", "Last_Name", "Email", "Mobile_Phone",
	"Course_Of_Interest", "Language", "Best_Way_To_Reach", "Desired_Location",
	"External_ID", "External_Metadata", "Form_Source",
	"Register_Method", "Register_Method_ID", "Status",
	"Created_On", "Modified_On",
}

func WriteLeadsCSV(path string, leads []creatio.Lead) error {
	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, []string{
			l.FirstName, l.LastName, l.Email, l.MobilePhone,
			l.CourseOfInterest, l.Language, l.BestWayToReach, l.DesiredLocation,
			l.ExternalID, l.ExternalMetadata, l.FormSource,
			l.RegisterMethod, l.RegisterMethodID, l.Status,
			l.CreatedOn, l.ModifiedOn,
		})
	}
	return writeCSV(path, leadHeader, rows)
}

func ReadLeadsCSV(path string) ([]creatio.Lead, error) {
	rows, err := readCSV(path, leadHeader)
	if err != nil {
		return nil, err
	}
	leads := make([]creatio.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, creatio.Lead{
			FirstName: r[0], LastName: r[1], Email: r[2], MobilePhone: r[3],
			CourseOfInterest: r[4], Language: r[5], BestWayToReach: r[6], DesiredLocation: r[7],
			ExternalID: r[8], ExternalMetadata: r[9], FormSource: r[10],
			RegisterMethod: r[11], RegisterMethodID: r[12], Status: r[13],
			CreatedOn: r[14], ModifiedOn: r[15],
		})
	}
	return leads, nil
}

var rawExecutionHeader = []string{
	"execution_id", "timestamp", "finished_at",
	"user_agent", "chat_id", "thread_id",
	"status", "mode", "raw_data",
}

// WriteRawExecutionsCSV dumps fetched executions before extraction. The
// user_agent/chat_id/thread_id columns hold only what a shallow scan of the
// payload finds; full extraction is the next stage's job.
func WriteRawExecutionsCSV(path string, executions []n8n.Execution) error {
	rows := make([][]string, 0, len(executions))
	for _, e := range executions {
		ua, chatID, threadID := shallowScan(e.Data)
		rows = append(rows, []string{
			e.ID.String(), e.StartedAt, e.FinishedAt,
			ua, chatID, threadID,
			e.Status, e.Mode, string(e.Data),
		})
	}
	return writeCSV(path, rawExecutionHeader, rows)
}

// shallowScan looks for user agent and conversation ids at the top level of
// the payload and one "data" level down. Most workflow payloads nest deeper
// and yield nothing here.
func shallowScan(raw json.RawMessage) (ua, chatID, threadID string) {
	if len(raw) == 0 {
		return
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return
	}

	scan := func(m map[string]json.RawMessage) {
		if headersRaw, ok := m["headers"]; ok && ua == "" {
			var headers map[string]string
			if json.Unmarshal(headersRaw, &headers) == nil {
				if v := headers["user-agent"]; v != "" {
					ua = v
				} else {
					ua = headers["User-Agent"]
				}
			}
		}
		if chatID == "" {
			chatID = firstString(m, "chatId", "chat_id")
		}
		if threadID == "" {
			threadID = firstString(m, "threadId", "thread_id")
		}
	}

	scan(top)
	if inner, ok := top["data"]; ok {
		var m map[string]json.RawMessage
		if json.Unmarshal(inner, &m) == nil {
			scan(m)
		}
	}
	return
}

// ReadRawExecutionsCSV reloads the raw execution dump, payload included, so
// extraction can re-run without refetching.
func ReadRawExecutionsCSV(path string) ([]n8n.Execution, error) {
	rows, err := readCSV(path, rawExecutionHeader)
	if err != nil {
		return nil, err
	}
	executions := make([]n8n.Execution, 0, len(rows))
	for _, r := range rows {
		executions = append(executions, n8n.Execution{
			ID:         json.Number(r[0]),
			StartedAt:  r[1],
			FinishedAt: r[2],
			Status:     r[6],
			Mode:       r[7],
			Data:       json.RawMessage(r[8]),
		})
	}
	return executions, nil
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

var extractedHeader = []string{
	"execution_id", "workflow_id", "timestamp",
	"user_agent", "chat_id", "thread_id",
	"conversation_stage", "workflow_status",
}

func WriteExtractedCSV(path string, records []extract.Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ExecutionID, r.WorkflowID, r.Timestamp.UTC().Format(time.RFC3339),
			r.UserAgent, r.ChatID, r.ThreadID,
			r.ConversationStage, r.WorkflowStatus,
		})
	}
	return writeCSV(path, extractedHeader, rows)
}

func ReadExtractedCSV(path string) ([]extract.Record, error) {
	rows, err := readCSV(path, extractedHeader)
	if err != nil {
		return nil, err
	}
	records := make([]extract.Record, 0, len(rows))
	for i, r := range rows {
		ts, err := time.Parse(time.RFC3339, r[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse timestamp %q: %w", path, i+1, r[2], err)
		}
		records = append(records, extract.Record{
			ExecutionID: r[0], WorkflowID: r[1], Timestamp: ts,
			UserAgent: r[3], ChatID: r[4], ThreadID: r[5],
			ConversationStage: r[6], WorkflowStatus: r[7],
		})
	}
	return records, nil
}

var profileHeader = []string{
	"user_id", "conversation_count",
	"first_interaction", "last_interaction",
	"devices", "browsers", "operating_systems",
	"device_count", "browser_count", "os_count",
	"sample_user_agent",
}

func WriteProfilesCSV(path string, profiles []*analyze.UserProfile) error {
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{
			p.UserID,
			strconv.Itoa(p.ConversationCount),
			p.FirstInteraction.UTC().Format(profileTimeLayout),
			p.LastInteraction.UTC().Format(profileTimeLayout),
			strings.Join(p.Devices, ", "),
			strings.Join(p.Browsers, ", "),
			strings.Join(p.OperatingSystems, ", "),
			strconv.Itoa(len(p.Devices)),
			strconv.Itoa(len(p.Browsers)),
			strconv.Itoa(len(p.OperatingSystems)),
			p.SampleUserAgent(),
		})
	}
	return writeCSV(path, profileHeader, rows)
}

// ReadProfilesCSV reloads the aggregated table. Raw user agents beyond the
// sample and the full timestamp list are not round-tripped; counts and the
// label sets are.
func ReadProfilesCSV(path string) ([]*analyze.UserProfile, error) {
	rows, err := readCSV(path, profileHeader)
	if err != nil {
		return nil, err
	}
	profiles := make([]*analyze.UserProfile, 0, len(rows))
	for i, r := range rows {
		count, err := strconv.Atoi(r[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse conversation_count %q: %w", path, i+1, r[1], err)
		}
		first, err := time.Parse(profileTimeLayout, r[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse first_interaction %q: %w", path, i+1, r[2], err)
		}
		last, err := time.Parse(profileTimeLayout, r[3])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse last_interaction %q: %w", path, i+1, r[3], err)
		}
		p := &analyze.UserProfile{
			UserID:            r[0],
			ConversationCount: count,
			FirstInteraction:  first,
			LastInteraction:   last,
			Devices:           splitLabels(r[4]),
			Browsers:          splitLabels(r[5]),
			OperatingSystems:  splitLabels(r[6]),
		}
		if r[10] != "" {
			p.UserAgents = []string{r[10]}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

var reportHeader = []string{
	"user_id", "conversation_count",
	"first_interaction", "last_interaction",
	"devices", "browsers", "operating_systems",
	"sample_user_agent",
}

func WriteReportCSV(path string, profiles []*analyze.UserProfile) error {
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		sample := p.SampleUserAgent()
		if len(sample) > 100 {
			sample = sample[:100] + "..."
		}
		rows = append(rows, []string{
			p.UserID,
			strconv.Itoa(p.ConversationCount),
			p.FirstInteraction.UTC().Format(reportTimeLayout),
			p.LastInteraction.UTC().Format(reportTimeLayout),
			strings.Join(p.Devices, ", "),
			strings.Join(p.Browsers, ", "),
			strings.Join(p.OperatingSystems, ", "),
			sample,
		})
	}
	return writeCSV(path, reportHeader, rows)
}

func ReadReportCSV(path string) ([]*analyze.UserProfile, error) {
	rows, err := readCSV(path, reportHeader)
	if err != nil {
		return nil, err
	}
	profiles := make([]*analyze.UserProfile, 0, len(rows))
	for i, r := range rows {
		count, err := strconv.Atoi(r[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse conversation_count %q: %w", path, i+1, r[1], err)
		}
		first, err := time.Parse(reportTimeLayout, r[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse first_interaction %q: %w", path, i+1, r[2], err)
		}
		last, err := time.Parse(reportTimeLayout, r[3])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse last_interaction %q: %w", path, i+1, r[3], err)
		}
		p := &analyze.UserProfile{
			UserID:            r[0],
			ConversationCount: count,
			FirstInteraction:  first,
			LastInteraction:   last,
			Devices:           splitLabels(r[4]),
			Browsers:          splitLabels(r[5]),
			OperatingSystems:  splitLabels(r[6]),
		}
		if r[7] != "" {
			p.UserAgents = []string{r[7]}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// WriteJSON writes any artifact's JSON form, indented.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s header: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write %s row: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	got, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	for i, name := range header {
		if got[i] != name {
			return nil, fmt.Errorf("%s: unexpected column %d: got %q, want %q", path, i, got[i], name)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
