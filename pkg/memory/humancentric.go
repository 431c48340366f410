package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// humanCentricEngine layers a short-term window, a salience-gated
// long-term pool, and periodic textual reflections, mirroring how a
// person recalls a recent moment, a standout memory, and "what I
// generally believe" all at once.
type humanCentricEngine struct {
	windowSize       int
	threshold        float64
	weights          SalienceWeights
	reflectionPeriod int
	store            Store
	lastReflectStep  map[string]int
}

func newHumanCentricEngine(cfg Config) *humanCentricEngine {
	store := cfg.Store
	if store == nil {
		store = newInMemoryStore()
	}
	size := cfg.WindowSize
	if size <= 0 {
		size = 1
	}
	period := cfg.ReflectionPeriod
	if period <= 0 {
		period = 1
	}
	return &humanCentricEngine{
		windowSize:       size,
		threshold:        cfg.SalienceThreshold,
		weights:          cfg.Weights,
		reflectionPeriod: period,
		store:            store,
		lastReflectStep:  make(map[string]int),
	}
}

func (e *humanCentricEngine) Name() string { return string(EngineHumanCentric) }

func (e *humanCentricEngine) Record(event Event) {
	_ = e.store.Append(context.Background(), event.AgentID, event)
}

func (e *humanCentricEngine) Retrieve(ctx context.Context, agentID string, k int) ([]Event, error) {
	all, err := e.store.List(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if k < 0 {
		k = 0
	}

	var ordered []Event

	reflections, err := e.store.Reflections(ctx, agentID, 1)
	if err != nil {
		return nil, err
	}
	if len(reflections) > 0 {
		ordered = append(ordered, Event{AgentID: agentID, Text: reflections[len(reflections)-1]})
	}

	salient := make([]Event, 0, len(all))
	for _, ev := range all {
		if e.weights.Salience(ev) >= e.threshold {
			salient = append(salient, ev)
		}
	}
	sort.SliceStable(salient, func(i, j int) bool {
		si, sj := e.weights.Salience(salient[i]), e.weights.Salience(salient[j])
		if si != sj {
			return si > sj
		}
		return salient[i].Step > salient[j].Step
	})
	ordered = append(ordered, salient...)

	window := make([]Event, len(all))
	copy(window, all)
	sortByStepDesc(window)
	if len(window) > e.windowSize {
		window = window[:e.windowSize]
	}
	ordered = append(ordered, window...)

	deduped := dedupeEvents(ordered)
	if k < len(deduped) {
		deduped = deduped[:k]
	}
	return deduped, nil
}

// Consolidate produces a reflection every ReflectionPeriod steps,
// summarizing the agent's short-term window into one textual trace.
func (e *humanCentricEngine) Consolidate(ctx context.Context, agentID string, step int) error {
	last := e.lastReflectStep[agentID]
	if step-last < e.reflectionPeriod {
		return nil
	}

	all, err := e.store.List(ctx, agentID)
	if err != nil {
		return err
	}
	window := make([]Event, len(all))
	copy(window, all)
	sortByStepDesc(window)
	if len(window) > e.windowSize {
		window = window[:e.windowSize]
	}

	if len(window) == 0 {
		e.lastReflectStep[agentID] = step
		return nil
	}

	lines := make([]string, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Text != "" {
			lines = append(lines, fmt.Sprintf("step %d: %s", window[i].Step, window[i].Text))
		}
	}
	reflection := fmt.Sprintf("reflection at step %d: %s", step, strings.Join(lines, "; "))

	if err := e.store.AppendReflection(ctx, agentID, reflection); err != nil {
		return err
	}
	e.lastReflectStep[agentID] = step
	return nil
}

func dedupeEvents(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		key := fmt.Sprintf("%s|%d|%s", ev.AgentID, ev.Step, ev.Text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}

var _ Engine = (*humanCentricEngine)(nil)
