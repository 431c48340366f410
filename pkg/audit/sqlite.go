package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const createRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS audit_records (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT NOT NULL,
    agent_id       TEXT NOT NULL,
    agent_type     TEXT NOT NULL,
    step           INTEGER NOT NULL,
    outcome        TEXT NOT NULL,
    final_skill_id TEXT,
    retry_count    INTEGER NOT NULL,
    attempts       TEXT NOT NULL,
    payload        TEXT,
    created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_run_step_agent ON audit_records(run_id, step, agent_id);
`

// SQLiteSink is an append-only Sink backed by SQLite, one row per
// Record with the full Payload JSON-serialized into a single column.
// It is safe for concurrent use.
type SQLiteSink struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
}

// NewSQLiteSink opens (or creates) path and ensures the records table
// exists. runID tags every row written through this sink when a Record
// itself carries no RunID, letting one database hold several
// simulation runs distinguishably even for callers that don't generate
// per-decision run IDs.
func NewSQLiteSink(path, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: set WAL mode: %w", err)
	}
	if _, err := db.Exec(createRecordsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &SQLiteSink{db: db, runID: runID}, nil
}

func (s *SQLiteSink) Write(ctx context.Context, rec Record) error {
	var payload []byte
	if rec.Payload != nil {
		b, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("audit: marshal payload: %w", err)
		}
		payload = b
	}

	attempts, err := json.Marshal(rec.Attempts)
	if err != nil {
		return fmt.Errorf("audit: marshal attempts: %w", err)
	}

	runID := rec.RunID
	if runID == "" {
		runID = s.runID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (run_id, agent_id, agent_type, step, outcome, final_skill_id, retry_count, attempts, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.AgentID, rec.AgentType, rec.Step, rec.Outcome, rec.FinalSkillID, rec.RetryCount, string(attempts), string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Sink = (*SQLiteSink)(nil)
