package validate

import (
	"github.com/agentskill/skillgov/pkg/skill"
	"github.com/agentskill/skillgov/pkg/verdict"
)

// Admissibility checks that skill_id is registered and admissible for
// the proposing agent's type, resolving rs.Definition for later stages.
func Admissibility(rs *RunState) error {
	def, err := rs.Registry.CheckAdmissibility(rs.Output.SkillID, rs.Agent.AgentType)
	if err != nil {
		return err
	}
	rs.Definition = def
	return nil
}

// ContextFeasibility checks every precondition against the agent and
// world snapshots.
func ContextFeasibility(rs *RunState) error {
	return skill.CheckFeasibility(rs.Definition, rs.Agent, rs.World)
}

// Institutional delegates to the Skill Registry's institutional
// constraint check.
func Institutional(rs *RunState) error {
	return skill.CheckInstitutional(rs.Definition, rs.Agent)
}

// EffectSafety confines the skill's declared effects to the allowed
// mutation set for this agent type and checks numeric deltas lie
// within their declared bounds.
func EffectSafety(rs *RunState) error {
	for _, eff := range rs.Definition.Effects {
		if rs.AllowedEffects != nil {
			if _, ok := rs.AllowedEffects[eff.Field]; !ok {
				return verdict.Newf(verdict.UnsafeEffect,
					"skill %q may mutate field %q, which is not in the allowed effect set for agent type %q",
					rs.Definition.SkillID, eff.Field, rs.Agent.AgentType).WithField(eff.Field)
			}
		}
		if eff.Kind == skill.MutationDelta && eff.MinDelta > eff.MaxDelta {
			return verdict.Newf(verdict.UnsafeEffect,
				"skill %q declares an empty delta bound for field %q (min %v > max %v)",
				rs.Definition.SkillID, eff.Field, eff.MinDelta, eff.MaxDelta).WithField(eff.Field)
		}
	}
	return nil
}

// Coherence checks the proposal's reasoning_labels tuple against the
// configured rule table, falling back to the nearest tuple by Hamming
// distance over ordinal scales when the exact tuple is absent.
func Coherence(rs *RunState) error {
	allowed, ok := rs.RuleTable.Lookup(rs.Dimensions, rs.Output.ReasoningLabels)
	if !ok {
		return nil // no rule table configured: coherence is vacuously satisfied
	}
	if len(allowed) == 0 {
		// Empty allowed set: only the default skill is admissible. The
		// default itself is exempt from this rejection, or §8's "only
		// default skill may be approved" could never resolve to approved.
		if rs.DefaultSkillID != "" && rs.Definition.SkillID == rs.DefaultSkillID {
			return nil
		}
		return verdict.Newf(verdict.Incoherent,
			"reasoning labels admit only the agent type's default skill, not %q", rs.Definition.SkillID).WithField("reasoning_labels")
	}
	for _, allowedID := range allowed {
		if allowedID == rs.Definition.SkillID {
			return nil
		}
	}
	return verdict.Newf(verdict.Incoherent,
		"skill %q is not among the skills admissible for the declared reasoning labels", rs.Definition.SkillID).WithField("reasoning_labels")
}

// DefaultStages is the pipeline order from spec §4.4, with
// Admissibility and ContextFeasibility pinned first as required.
func DefaultStages() []NamedStage {
	return []NamedStage{
		{Name: StageAdmissibility, Run: Admissibility},
		{Name: StageContextFeasibility, Run: ContextFeasibility},
		{Name: StageInstitutional, Run: Institutional},
		{Name: StageEffectSafety, Run: EffectSafety},
		{Name: StageCoherence, Run: Coherence},
	}
}

// NamedStage pairs a Stage with the StageName configuration refers to it by.
type NamedStage struct {
	Name StageName
	Run  Stage
}
