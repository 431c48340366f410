package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowEngineReturnsNewestFirstClampedToWindow(t *testing.T) {
	eng, err := NewEngine(Config{Kind: EngineWindow, WindowSize: 2})
	require.NoError(t, err)

	for step := 1; step <= 5; step++ {
		eng.Record(Event{AgentID: "a1", Step: step, Text: "event"})
	}

	out, err := eng.Retrieve(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 5, out[0].Step)
	assert.Equal(t, 4, out[1].Step)
}

func TestWindowEngineEmptyStoreNeverFails(t *testing.T) {
	eng, err := NewEngine(Config{Kind: EngineWindow, WindowSize: 3})
	require.NoError(t, err)

	out, err := eng.Retrieve(context.Background(), "ghost", 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestImportanceEngineRanksBySalienceThenRecency(t *testing.T) {
	eng, err := NewEngine(Config{
		Kind:    EngineImportance,
		Weights: SalienceWeights{"is_flood_year": 2, "adaptation_executed": 1.5},
	})
	require.NoError(t, err)

	eng.Record(Event{AgentID: "a1", Step: 1, Fields: map[string]interface{}{}})
	eng.Record(Event{AgentID: "a1", Step: 2, Fields: map[string]interface{}{"is_flood_year": true}})
	eng.Record(Event{AgentID: "a1", Step: 3, Fields: map[string]interface{}{"adaptation_executed": true}})

	out, err := eng.Retrieve(context.Background(), "a1", 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 2, out[0].Step) // salience 2.0
	assert.Equal(t, 3, out[1].Step) // salience 1.5
	assert.Equal(t, 1, out[2].Step) // salience 0
}

func TestHumanCentricEngineOrdersReflectionSalientWindow(t *testing.T) {
	eng, err := NewEngine(Config{
		Kind:              EngineHumanCentric,
		WindowSize:        2,
		Weights:           SalienceWeights{"is_flood_year": 2},
		SalienceThreshold: 2,
		ReflectionPeriod:  2,
	})
	require.NoError(t, err)
	ctx := context.Background()

	eng.Record(Event{AgentID: "a1", Step: 1, Text: "calm year", Fields: map[string]interface{}{}})
	eng.Record(Event{AgentID: "a1", Step: 2, Text: "flood hit", Fields: map[string]interface{}{"is_flood_year": true}})
	require.NoError(t, eng.Consolidate(ctx, "a1", 2))

	eng.Record(Event{AgentID: "a1", Step: 3, Text: "rebuilt"})
	eng.Record(Event{AgentID: "a1", Step: 4, Text: "quiet"})

	out, err := eng.Retrieve(ctx, "a1", 10)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Contains(t, out[0].Text, "reflection at step 2")
}

func TestHumanCentricEngineEmptyStoreNeverFails(t *testing.T) {
	eng, err := NewEngine(Config{Kind: EngineHumanCentric, WindowSize: 2, ReflectionPeriod: 1})
	require.NoError(t, err)

	out, err := eng.Retrieve(context.Background(), "ghost", 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewEngineRejectsUnknownKind(t *testing.T) {
	_, err := NewEngine(Config{Kind: "nonexistent"})
	assert.Error(t, err)
}
