// Package memory implements the Memory Engine: the per-agent event
// store that records what happened and decides what is worth recalling
// for the next decision.
package memory

import (
	"context"
	"fmt"
)

// Event is one recorded occurrence for a single agent. Fields carries
// domain-declared signals (e.g. "is_flood_year", "adaptation_executed")
// that salience weighting reads; Text is the human-readable trace used
// when an event is rendered into a prompt.
type Event struct {
	AgentID string
	Step    int
	Text    string
	Fields  map[string]interface{}
}

// Engine is the common contract every memory variant implements.
type Engine interface {
	// Record appends event to its agent's store. Total: never fails.
	Record(event Event)

	// Retrieve returns at most k events most useful for the current
	// decision, in presentation order. Returns an empty slice (never an
	// error) when the agent has no recorded events.
	Retrieve(ctx context.Context, agentID string, k int) ([]Event, error)

	// Consolidate gives the engine a chance to rewrite its store (evict,
	// summarize) at step. Variants for which this is a no-op must still
	// implement it so callers can invoke it unconditionally.
	Consolidate(ctx context.Context, agentID string, step int) error

	// Name identifies the engine variant, matching the configuration
	// value it was constructed from.
	Name() string
}

// SalienceWeights maps a domain-declared signal field name to the
// weight it contributes to an event's salience score.
type SalienceWeights map[string]float64

// Salience computes the weighted sum of e's declared signal fields that
// appear in w. A field absent from e.Fields contributes nothing.
func (w SalienceWeights) Salience(e Event) float64 {
	var total float64
	for field, weight := range w {
		v, ok := e.Fields[field]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			if t {
				total += weight
			}
		case float64:
			total += weight * t
		case int:
			total += weight * float64(t)
		}
	}
	return total
}

// EngineKind identifies one memory-engine variant by configuration value.
type EngineKind string

const (
	EngineWindow       EngineKind = "window"
	EngineImportance   EngineKind = "importance"
	EngineHumanCentric EngineKind = "human_centric"
)

// Config configures engine construction. Only the fields relevant to
// the selected Kind are read.
type Config struct {
	Kind EngineKind

	// WindowSize bounds the Window engine's ring buffer and the
	// short-term tier of the HumanCentric engine.
	WindowSize int

	// Weights drives the Importance engine's ranking and the
	// HumanCentric engine's long-term-pool admission threshold.
	Weights SalienceWeights

	// SalienceThreshold is the minimum score for an event to enter the
	// HumanCentric engine's long-term pool.
	SalienceThreshold float64

	// ReflectionPeriod is the HumanCentric engine's R: a reflection is
	// produced every R steps of Consolidate.
	ReflectionPeriod int

	// Store, if non-nil, delegates persistence to a remote backend
	// (e.g. Redis) instead of keeping events only in process memory.
	Store Store
}

// NewEngine constructs the Engine variant named by cfg.Kind.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Kind {
	case EngineWindow:
		return newWindowEngine(cfg), nil
	case EngineImportance:
		return newImportanceEngine(cfg), nil
	case EngineHumanCentric:
		return newHumanCentricEngine(cfg), nil
	default:
		return nil, fmt.Errorf("unknown memory engine: %q (supported: window, importance, human_centric)", cfg.Kind)
	}
}
