// Package skillgov provides governance middleware for LLM agents acting
// inside an agent-based simulation.
//
// skillgov wraps a probabilistic text generator so that every agent
// decision is elicited against a structured skill vocabulary, screened by
// an ordered validation pipeline, reshaped through a pedagogical retry
// loop when screening fails, and recorded as a fully reconstructable
// audit trace.
//
// # Core Components
//
//   - Skill Registry (pkg/skill): the declarative catalog of admissible
//     skills, their preconditions, institutional constraints and effects.
//   - Memory Engine (pkg/memory): pluggable per-agent record/retrieve
//     store (window, importance-weighted, human-centric).
//   - Context Builder (pkg/context): assembles the prompt and output
//     schema from agent, world, social and memory inputs.
//   - Validation Pipeline (pkg/validate): five ordered validators with
//     pedagogical rejection messages.
//   - Skill Broker (pkg/broker): the per-decision state machine that
//     drives model invocation, parsing, validation and retry.
//   - Audit Writer (pkg/audit): the append-only decision trace.
//
// # Using as a Go Library
//
//	import (
//	    "github.com/agentskill/skillgov/pkg/broker"
//	    "github.com/agentskill/skillgov/pkg/skill"
//	    "github.com/agentskill/skillgov/pkg/config"
//	)
//
// # Scope
//
// skillgov does not simulate any domain, advance world time, or execute
// a skill's side effects — those stay with the embedding simulator. The
// core only governs the decision: what an agent is allowed to propose,
// and why a proposal was accepted or rejected.
package skillgov
