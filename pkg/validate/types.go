// Package validate implements the five-stage validation pipeline that
// screens every agent decision proposal before it is accepted.
package validate

import (
	"github.com/agentskill/skillgov/pkg/context"
	"github.com/agentskill/skillgov/pkg/skill"
)

// StageName identifies one pipeline stage for configuration-driven
// ordering and severity.
type StageName string

const (
	StageAdmissibility       StageName = "admissibility"
	StageContextFeasibility  StageName = "context_feasibility"
	StageInstitutional       StageName = "institutional"
	StageEffectSafety        StageName = "effect_safety"
	StageCoherence           StageName = "coherence"
)

// RunState carries everything a stage needs and accumulates the
// resolved skill definition once Admissibility has run.
type RunState struct {
	Registry       *skill.Registry
	Output         context.Output
	Agent          skill.AgentState
	World          skill.WorldState
	AllowedEffects map[string]struct{}
	RuleTable      RuleTable
	Dimensions     []string

	// DefaultSkillID is the requesting agent type's configured
	// default_skill, if any. Coherence exempts it from rejection when
	// the rule table's allowed set is empty, since the fallback policy
	// must always be able to approve the default per spec §8.
	DefaultSkillID string

	Definition skill.Definition
}

// Stage is one validator: it inspects and may extend rs, returning a
// *verdict.Error on rejection or nil on OK. Stages are pure and
// side-effect-free, per spec §4.4.
type Stage func(rs *RunState) error
