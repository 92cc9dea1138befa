package gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type UsageRecord struct {
	Timestamp    time.Time `json:"ts"`
	RunID        string    `json:"run_id,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
}

// UsageLog appends one JSON line per successful query.
type UsageLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewUsageLog(path string) *UsageLog {
	return &UsageLog{path: path, now: time.Now}
}

func (l *UsageLog) Path() string {
	return l.path
}

func (l *UsageLog) Append(rec UsageRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling usage record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating usage log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening usage log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// ParseUsageLogs reads a JSONL usage log, skipping lines that are not records.
func ParseUsageLogs(logPath string) ([]UsageRecord, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("reading usage log: %w", err)
	}
	var records []UsageRecord
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var rec UsageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Model != "" {
			records = append(records, rec)
		}
	}
	return records, nil
}

func TotalUsage(records []UsageRecord) (inputTokens, outputTokens int) {
	for _, r := range records {
		inputTokens += r.InputTokens
		outputTokens += r.OutputTokens
	}
	return
}

// UsageByRun groups records by run id.
func UsageByRun(records []UsageRecord) map[string][]UsageRecord {
	out := make(map[string][]UsageRecord)
	for _, r := range records {
		out[r.RunID] = append(out[r.RunID], r)
	}
	return out
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
