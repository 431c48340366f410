package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// ndjsonLine is the on-disk shape of one NDJSON record: spec §6's fixed
// top-level keys plus a server-stamped timestamp, since Record itself
// carries no clock.
type ndjsonLine struct {
	Timestamp    string         `json:"timestamp"`
	RunID        string         `json:"run_id"`
	AgentID      string         `json:"agent_id"`
	AgentType    string         `json:"agent_type"`
	Step         int            `json:"step"`
	Outcome      string         `json:"outcome"`
	FinalSkillID string         `json:"final_skill_id,omitempty"`
	RetryCount   int            `json:"retry_count"`
	Attempts     []AttemptEntry `json:"attempts"`
	Payload      interface{}    `json:"payload,omitempty"`
}

// NDJSONSink appends one JSON object per line to a file, for
// human-inspectable or streaming-ingestible audit trails. It is safe
// for concurrent use.
type NDJSONSink struct {
	mu sync.Mutex
	f  *os.File
	enc *json.Encoder
}

// NewNDJSONSink opens path for appending, creating it if necessary.
func NewNDJSONSink(path string) (*NDJSONSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open ndjson file %q: %w", path, err)
	}
	return &NDJSONSink{f: f, enc: json.NewEncoder(f)}, nil
}

func (s *NDJSONSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := ndjsonLine{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		RunID:        rec.RunID,
		AgentID:      rec.AgentID,
		AgentType:    rec.AgentType,
		Step:         rec.Step,
		Outcome:      rec.Outcome,
		FinalSkillID: rec.FinalSkillID,
		RetryCount:   rec.RetryCount,
		Attempts:     rec.Attempts,
		Payload:      rec.Payload,
	}
	if err := s.enc.Encode(line); err != nil {
		return fmt.Errorf("audit: write ndjson record: %w", err)
	}
	return nil
}

func (s *NDJSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

var _ Sink = (*NDJSONSink)(nil)
