package audit

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// nAttempts builds a slice of n placeholder attempt entries, for tests
// that only care about the attempt count matching retry_count+1.
func nAttempts(n int) []AttemptEntry {
	out := make([]AttemptEntry, n)
	for i := range out {
		out[i] = AttemptEntry{PromptHash: "hash", ValidatorVerdicts: []string{}}
	}
	return out
}

func TestSQLiteSinkWritesOneRowPerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path, "run-1")
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, Record{
		AgentID: "agent-1", AgentType: "household", Step: 3,
		Outcome: "approved", FinalSkillID: "do_nothing", RetryCount: 0, Attempts: nAttempts(1),
		Payload: map[string]interface{}{"labels": map[string]string{"risk_perception": "H"}},
	}))
	require.NoError(t, sink.Write(ctx, Record{
		AgentID: "agent-2", AgentType: "household", Step: 3,
		Outcome: "fallback", FinalSkillID: "evacuate", RetryCount: 3, Attempts: nAttempts(4),
	}))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM audit_records WHERE run_id = ?`, "run-1").Scan(&count))
	require.Equal(t, 2, count)

	var payload string
	require.NoError(t, db.QueryRow(`SELECT payload FROM audit_records WHERE agent_id = ?`, "agent-1").Scan(&payload))
	require.Contains(t, payload, "risk_perception")

	var retryCount int
	require.NoError(t, db.QueryRow(`SELECT retry_count FROM audit_records WHERE agent_id = ?`, "agent-2").Scan(&retryCount))
	require.Equal(t, 3, retryCount)
}

func TestSQLiteSinkPrefersRecordRunIDOverSinkRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path, "fallback-run")
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, Record{
		RunID: "decision-run-1", AgentID: "agent-1", AgentType: "household", Step: 1,
		Outcome: "approved", FinalSkillID: "do_nothing", Attempts: nAttempts(1),
	}))
	require.NoError(t, sink.Write(ctx, Record{
		AgentID: "agent-2", AgentType: "household", Step: 1,
		Outcome: "approved", FinalSkillID: "do_nothing", Attempts: nAttempts(1),
	}))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var runID string
	require.NoError(t, db.QueryRow(`SELECT run_id FROM audit_records WHERE agent_id = ?`, "agent-1").Scan(&runID))
	require.Equal(t, "decision-run-1", runID)
	require.NoError(t, db.QueryRow(`SELECT run_id FROM audit_records WHERE agent_id = ?`, "agent-2").Scan(&runID))
	require.Equal(t, "fallback-run", runID)
}

func TestNDJSONSinkAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	sink, err := NewNDJSONSink(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, Record{RunID: "run-1", AgentID: "agent-1", AgentType: "household", Step: 1, Outcome: "approved", FinalSkillID: "do_nothing", RetryCount: 0, Attempts: nAttempts(1)}))
	require.NoError(t, sink.Write(ctx, Record{RunID: "run-1", AgentID: "agent-2", AgentType: "household", Step: 1, Outcome: "parse_exhausted", RetryCount: 5, Attempts: nAttempts(6)}))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []ndjsonLine
	for scanner.Scan() {
		var l ndjsonLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))
		lines = append(lines, l)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "agent-1", lines[0].AgentID)
	require.Equal(t, "parse_exhausted", lines[1].Outcome)
	require.Len(t, lines[1].Attempts, 6)
	require.Equal(t, 5, lines[1].RetryCount)
	require.Equal(t, len(lines[1].Attempts), lines[1].RetryCount+1)
}

func TestMetricsSinkCountsFallbackAndExhausted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsSink(reg)

	ctx := context.Background()
	require.NoError(t, m.Write(ctx, Record{AgentType: "household", Outcome: "fallback", Attempts: nAttempts(4)}))
	require.NoError(t, m.Write(ctx, Record{AgentType: "household", Outcome: "parse_exhausted", Attempts: nAttempts(6)}))
	require.NoError(t, m.Write(ctx, Record{AgentType: "household", Outcome: "parse_exhausted", Attempts: nAttempts(6)}))

	require.Equal(t, float64(1), testutil.ToFloat64(m.fallbackTotal.WithLabelValues("household")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.exhaustedTotal.WithLabelValues("household")))
}

func TestMultiSinkFansOutToEverySink(t *testing.T) {
	dir := t.TempDir()
	sqliteSink, err := NewSQLiteSink(filepath.Join(dir, "audit.db"), "run-1")
	require.NoError(t, err)
	ndjsonSink, err := NewNDJSONSink(filepath.Join(dir, "audit.ndjson"))
	require.NoError(t, err)

	multi := MultiSink{Sinks: []Sink{sqliteSink, ndjsonSink}}
	require.NoError(t, multi.Write(context.Background(), Record{AgentID: "agent-1", AgentType: "household", Outcome: "approved", FinalSkillID: "do_nothing", Attempts: nAttempts(1)}))
	require.NoError(t, multi.Close())
}
