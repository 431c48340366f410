package memory

import "context"

// windowEngine is a ring buffer of the last W events per agent.
// Retrieve returns newest-first; Consolidate is a no-op.
type windowEngine struct {
	size  int
	store Store
}

func newWindowEngine(cfg Config) *windowEngine {
	store := cfg.Store
	if store == nil {
		store = newInMemoryStore()
	}
	size := cfg.WindowSize
	if size <= 0 {
		size = 1
	}
	return &windowEngine{size: size, store: store}
}

func (e *windowEngine) Name() string { return string(EngineWindow) }

func (e *windowEngine) Record(event Event) {
	_ = e.store.Append(context.Background(), event.AgentID, event)
}

func (e *windowEngine) Retrieve(ctx context.Context, agentID string, k int) ([]Event, error) {
	all, err := e.store.List(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []Event{}, nil
	}

	sortByStepDesc(all)

	limit := k
	if limit > e.size {
		limit = e.size
	}
	if limit > len(all) {
		limit = len(all)
	}
	if limit < 0 {
		limit = 0
	}
	return append([]Event(nil), all[:limit]...), nil
}

func (e *windowEngine) Consolidate(_ context.Context, _ string, _ int) error {
	return nil
}

var _ Engine = (*windowEngine)(nil)
