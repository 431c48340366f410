// Package context builds the single prompt payload and output schema
// handed to the model for one agent decision.
package context

import "github.com/agentskill/skillgov/pkg/skill"

// SocialSignal is one message from a peer agent delivered by an
// external message pool. The builder renders it verbatim; it does not
// interpret or route it.
type SocialSignal struct {
	FromAgentID string
	Text        string
}

// MemorySlice is the ordered list of recalled memory events to render,
// already produced by a memory.Engine.Retrieve call.
type MemorySlice struct {
	Texts []string
}

// MenuEntry is one skill offered to the agent in this decision, with
// its precondition feasibility already evaluated.
type MenuEntry struct {
	Definition        skill.Definition
	InfeasibleReasons []string // empty when every precondition currently holds
}

// Feasible reports whether every precondition for this entry's skill
// currently holds.
func (m MenuEntry) Feasible() bool {
	return len(m.InfeasibleReasons) == 0
}

// Request is everything the Context Builder needs to assemble one
// prompt: the agent and world snapshots, optional social signals, the
// retrieved memory slice, and the filtered skill menu.
type Request struct {
	Agent         skill.AgentState
	World         skill.WorldState
	SocialSignals []SocialSignal
	Memory        MemorySlice
	Menu          []MenuEntry

	// TokenBudget caps the rendered prompt's token count. Zero means
	// unbounded.
	TokenBudget int

	// RandomizeMenu, when true, shuffles Menu order deterministically
	// using Seed before rendering.
	RandomizeMenu bool
	Seed          int64
}

// CognitiveDimensions lists the reasoning dimensions the output
// schema's reasoning_labels object must cover, e.g. "risk_perception",
// "social_norm_pressure".
type CognitiveDimensions []string

// Output is the structured object the model must fill, per spec §4.3:
// reasoning_labels keyed by dimension, the chosen skill_id, and a
// confidence in [0,1].
type Output struct {
	ReasoningLabels map[string]string `json:"reasoning_labels"`
	SkillID         string            `json:"skill_id"`
	Confidence      float64           `json:"confidence"`
}

// Result is the builder's output: the rendered prompt text, the
// JSON-schema rendering of Output, and a parser the broker uses to
// validate a raw model response against that schema.
type Result struct {
	Prompt     string
	Schema     map[string]interface{}
	TokenCount int
	Parse      func(raw string) (Output, error)
}
