package skill

import (
	"errors"
	"testing"

	"github.com/agentskill/skillgov/pkg/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elevateHouse() Definition {
	return Definition{
		SkillID:           "elevate_house",
		DisplayName:       "Elevate House",
		AllowedAgentTypes: map[string]struct{}{"household_owner": {}},
		Constraints: []Constraint{
			{Kind: ConstraintOnceOnly},
		},
	}
}

func TestRegistryLookupUnknownSkillSuggestsNearest(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(elevateHouse()))
	require.NoError(t, r.Register(Definition{SkillID: "buy_insurance", AllowedAgentTypes: map[string]struct{}{"household_owner": {}}}))

	_, err := r.Lookup("elevate_hous")
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.UnknownSkill, "")))
	assert.Contains(t, err.Error(), "elevate_house")
}

func TestRegistrySkillsForFiltersByAgentType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(elevateHouse()))
	require.NoError(t, r.Register(Definition{SkillID: "zone_variance", AllowedAgentTypes: map[string]struct{}{"planner": {}}}))

	skills := r.SkillsFor("household_owner")
	require.Len(t, skills, 1)
	assert.Equal(t, "elevate_house", skills[0].SkillID)
}

func TestCheckAdmissibilityRejectsForbiddenForType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(elevateHouse()))

	_, err := r.CheckAdmissibility("elevate_house", "planner")
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.ForbiddenForType, "")))
}

func TestCheckFeasibilityEvaluatesPreconditions(t *testing.T) {
	def := Definition{
		SkillID: "elevate_house",
		Preconditions: []Precondition{
			{Name: "owns home", Source: SourceAgent, Field: "owns_home", Op: OpTrue},
			{Name: "income threshold", Source: SourceAgent, Field: "income", Op: OpGTE, Value: float64(30000)},
		},
	}

	ok := AgentState{Attributes: map[string]interface{}{"owns_home": true, "income": float64(45000)}}
	assert.NoError(t, CheckFeasibility(def, ok, WorldState{}))

	poor := AgentState{Attributes: map[string]interface{}{"owns_home": true, "income": float64(10000)}}
	err := CheckFeasibility(def, poor, WorldState{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.PreconditionFailed, "")))

	renter := AgentState{Attributes: map[string]interface{}{"owns_home": false, "income": float64(45000)}}
	err = CheckFeasibility(def, renter, WorldState{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.PreconditionFailed, "")))
}

func TestCheckInstitutionalOnceOnly(t *testing.T) {
	def := elevateHouse()

	fresh := AgentState{ExecutedOnce: map[string]bool{}}
	assert.NoError(t, CheckInstitutional(def, fresh))

	already := AgentState{ExecutedOnce: map[string]bool{"elevate_house": true}}
	err := CheckInstitutional(def, already)
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.AlreadyExecuted, "")))
}

func TestCheckInstitutionalCooldown(t *testing.T) {
	def := Definition{
		SkillID:     "apply_for_grant",
		Constraints: []Constraint{{Kind: ConstraintCooldown, CooldownSteps: 4}},
	}

	tooSoon := AgentState{Step: 5, LastStep: map[string]int{"apply_for_grant": 3}}
	err := CheckInstitutional(def, tooSoon)
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.Cooldown, "")))

	okNow := AgentState{Step: 7, LastStep: map[string]int{"apply_for_grant": 3}}
	assert.NoError(t, CheckInstitutional(def, okNow))
}

func TestCheckInstitutionalAnnualLimit(t *testing.T) {
	def := Definition{
		SkillID:     "file_claim",
		Constraints: []Constraint{{Kind: ConstraintAnnualLimit, AnnualLimit: 2}},
	}

	exhausted := AgentState{CountInWindow: map[string]int{"file_claim": 2}}
	err := CheckInstitutional(def, exhausted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.QuotaExhausted, "")))

	underLimit := AgentState{CountInWindow: map[string]int{"file_claim": 1}}
	assert.NoError(t, CheckInstitutional(def, underLimit))
}

func TestCheckInstitutionalExclusiveWith(t *testing.T) {
	def := Definition{
		SkillID:     "relocate",
		Constraints: []Constraint{{Kind: ConstraintExclusiveWith, ExclusiveWith: []string{"elevate_house"}}},
	}

	conflict := AgentState{ExecutedOnce: map[string]bool{"elevate_house": true}}
	err := CheckInstitutional(def, conflict)
	require.Error(t, err)
	assert.True(t, errors.Is(err, verdict.New(verdict.Exclusivity, "")))

	clear := AgentState{ExecutedOnce: map[string]bool{}}
	assert.NoError(t, CheckInstitutional(def, clear))
}
