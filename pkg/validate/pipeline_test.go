package validate

import (
	"errors"
	"testing"

	"github.com/agentskill/skillgov/pkg/context"
	"github.com/agentskill/skillgov/pkg/skill"
	"github.com/agentskill/skillgov/pkg/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRegistry(t *testing.T) *skill.Registry {
	t.Helper()
	r := skill.NewRegistry()
	require.NoError(t, r.Register(skill.Definition{
		SkillID:           "elevate_house",
		AllowedAgentTypes: map[string]struct{}{"household_owner": {}},
		Preconditions: []skill.Precondition{
			{Name: "owns home", Source: skill.SourceAgent, Field: "owns_home", Op: skill.OpTrue},
		},
		Constraints: []skill.Constraint{{Kind: skill.ConstraintOnceOnly}},
		Effects:     []skill.Effect{{Field: "elevation", Kind: skill.MutationDelta, MinDelta: 0, MaxDelta: 3}},
	}))
	return r
}

func TestDefaultPipelineApprovesValidProposal(t *testing.T) {
	p, err := NewPipeline([]StageName{
		StageAdmissibility, StageContextFeasibility, StageInstitutional, StageEffectSafety, StageCoherence,
	}, nil)
	require.NoError(t, err)

	rs := &RunState{
		Registry:       buildRegistry(t),
		Output:         context.Output{SkillID: "elevate_house"},
		Agent:          skill.AgentState{AgentType: "household_owner", Attributes: map[string]interface{}{"owns_home": true}},
		World:          skill.WorldState{},
		AllowedEffects: map[string]struct{}{"elevation": {}},
	}

	outcome := p.Run(rs)
	assert.NoError(t, outcome.Rejected)
	assert.Empty(t, outcome.Warnings)
}

func TestPipelineShortCircuitsOnFirstRejection(t *testing.T) {
	p, err := NewPipeline([]StageName{
		StageAdmissibility, StageContextFeasibility, StageInstitutional, StageEffectSafety, StageCoherence,
	}, nil)
	require.NoError(t, err)

	rs := &RunState{
		Registry: buildRegistry(t),
		Output:   context.Output{SkillID: "elevate_house"},
		Agent:    skill.AgentState{AgentType: "household_owner", Attributes: map[string]interface{}{"owns_home": false}},
		World:    skill.WorldState{},
	}

	outcome := p.Run(rs)
	require.Error(t, outcome.Rejected)
	assert.True(t, errors.Is(outcome.Rejected, verdict.New(verdict.PreconditionFailed, "")))
}

func TestPipelineRejectsUnsafeEffect(t *testing.T) {
	p, err := NewPipeline([]StageName{
		StageAdmissibility, StageContextFeasibility, StageInstitutional, StageEffectSafety, StageCoherence,
	}, nil)
	require.NoError(t, err)

	rs := &RunState{
		Registry:       buildRegistry(t),
		Output:         context.Output{SkillID: "elevate_house"},
		Agent:          skill.AgentState{AgentType: "household_owner", Attributes: map[string]interface{}{"owns_home": true}},
		World:          skill.WorldState{},
		AllowedEffects: map[string]struct{}{}, // elevation not allowed
	}

	outcome := p.Run(rs)
	require.Error(t, outcome.Rejected)
	assert.True(t, errors.Is(outcome.Rejected, verdict.New(verdict.UnsafeEffect, "")))
}

func TestPipelineWarningSeverityContinues(t *testing.T) {
	p, err := NewPipeline(
		[]StageName{StageAdmissibility, StageContextFeasibility, StageInstitutional, StageEffectSafety, StageCoherence},
		map[StageName]Severity{StageEffectSafety: SeverityWarning},
	)
	require.NoError(t, err)

	rs := &RunState{
		Registry:       buildRegistry(t),
		Output:         context.Output{SkillID: "elevate_house"},
		Agent:          skill.AgentState{AgentType: "household_owner", Attributes: map[string]interface{}{"owns_home": true}},
		World:          skill.WorldState{},
		AllowedEffects: map[string]struct{}{},
	}

	outcome := p.Run(rs)
	assert.NoError(t, outcome.Rejected)
	require.Len(t, outcome.Warnings, 1)
	assert.Equal(t, StageEffectSafety, outcome.Warnings[0].Stage)
}

func TestNewPipelineRequiresAdmissibilityAndFeasibilityFirst(t *testing.T) {
	_, err := NewPipeline([]StageName{StageInstitutional, StageAdmissibility, StageContextFeasibility}, nil)
	assert.Error(t, err)
}

func TestCoherenceRejectsSkillOutsideAllowedSet(t *testing.T) {
	table := RuleTable{
		Entries: map[string][]string{
			"H": {"do_nothing"},
		},
	}
	rs := &RunState{
		Definition: skill.Definition{SkillID: "elevate_house"},
		Output:     context.Output{ReasoningLabels: map[string]string{"risk_perception": "H"}},
		RuleTable:  table,
		Dimensions: []string{"risk_perception"},
	}

	err := Coherence(rs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.Incoherent, "")))
}

func TestCoherenceFallsBackToNearestTupleOnMissingEntry(t *testing.T) {
	// Only "H|H" is configured. The proposal declares risk_perception=H but
	// omits social_norm_pressure, which substitutes to the scale midpoint
	// "M", producing the untabulated tuple "H|M". Its nearest (and only)
	// configured neighbor is "H|H", which permits elevate_house.
	table := RuleTable{
		Entries: map[string][]string{
			"H|H": {"elevate_house"},
		},
	}
	rs := &RunState{
		Definition: skill.Definition{SkillID: "elevate_house"},
		Output:     context.Output{ReasoningLabels: map[string]string{"risk_perception": "H"}},
		RuleTable:  table,
		Dimensions: []string{"risk_perception", "social_norm_pressure"},
	}

	assert.NoError(t, Coherence(rs))
}

func TestCoherenceSkippedWhenNoRuleTableConfigured(t *testing.T) {
	rs := &RunState{
		Definition: skill.Definition{SkillID: "anything"},
		Output:     context.Output{ReasoningLabels: map[string]string{}},
		RuleTable:  RuleTable{},
	}
	assert.NoError(t, Coherence(rs))
}
