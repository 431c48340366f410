package memory

import (
	"context"
	"sort"
)

// importanceEngine retains every recorded event and ranks retrieval by
// salience, a weighted sum of domain-declared signal fields; ties are
// broken by recency.
type importanceEngine struct {
	weights SalienceWeights
	store   Store
}

func newImportanceEngine(cfg Config) *importanceEngine {
	store := cfg.Store
	if store == nil {
		store = newInMemoryStore()
	}
	return &importanceEngine{weights: cfg.Weights, store: store}
}

func (e *importanceEngine) Name() string { return string(EngineImportance) }

func (e *importanceEngine) Record(event Event) {
	_ = e.store.Append(context.Background(), event.AgentID, event)
}

func (e *importanceEngine) Retrieve(ctx context.Context, agentID string, k int) ([]Event, error) {
	all, err := e.store.List(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []Event{}, nil
	}

	ranked := make([]Event, len(all))
	copy(ranked, all)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := e.weights.Salience(ranked[i]), e.weights.Salience(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].Step > ranked[j].Step
	})

	if k < 0 {
		k = 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k], nil
}

func (e *importanceEngine) Consolidate(_ context.Context, _ string, _ int) error {
	return nil
}

var _ Engine = (*importanceEngine)(nil)
