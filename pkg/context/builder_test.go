package context

import (
	"strings"
	"testing"

	"github.com/agentskill/skillgov/pkg/skill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() Request {
	return Request{
		Agent: skill.AgentState{
			AgentID:    "a1",
			AgentType:  "household_owner",
			Step:       3,
			Attributes: map[string]interface{}{"income": 45000.0},
		},
		World: skill.WorldState{"flood_risk": "moderate"},
		Memory: MemorySlice{
			Texts: []string{"step 1: bought insurance", "step 2: flood warning issued"},
		},
		Menu: []MenuEntry{
			{Definition: skill.Definition{SkillID: "elevate_house", DisplayName: "Elevate House", Description: "raise the foundation"}},
			{
				Definition:        skill.Definition{SkillID: "buy_insurance", DisplayName: "Buy Insurance", Description: "purchase flood cover"},
				InfeasibleReasons: []string{"income below threshold"},
			},
		},
	}
}

func TestBuildIncludesAllSectionsInOrder(t *testing.T) {
	b, err := NewBuilder("gpt-4", CognitiveDimensions{"risk_perception"})
	require.NoError(t, err)

	result, err := b.Build(testRequest())
	require.NoError(t, err)

	preambleIdx := strings.Index(result.Prompt, "# Decision Task")
	agentIdx := strings.Index(result.Prompt, "## Agent")
	worldIdx := strings.Index(result.Prompt, "## World")
	memoryIdx := strings.Index(result.Prompt, "## Memory")
	menuIdx := strings.Index(result.Prompt, "## Skill Menu")
	schemaIdx := strings.Index(result.Prompt, "## Output Schema")

	require.True(t, preambleIdx >= 0 && agentIdx > preambleIdx)
	assert.True(t, worldIdx > agentIdx)
	assert.True(t, memoryIdx > worldIdx)
	assert.True(t, menuIdx > memoryIdx)
	assert.True(t, schemaIdx > menuIdx)
	assert.Contains(t, result.Prompt, "INFEASIBLE: income below threshold")
}

func TestBuildTruncatesMemoryBeforeMenu(t *testing.T) {
	b, err := NewBuilder("gpt-4", CognitiveDimensions{"risk_perception"})
	require.NoError(t, err)

	req := testRequest()
	req.TokenBudget = 1 // force aggressive truncation
	result, err := b.Build(req)
	require.NoError(t, err)

	assert.NotContains(t, result.Prompt, "bought insurance")
	assert.Contains(t, result.Prompt, "## Skill Menu")
	assert.Contains(t, result.Prompt, "elevate_house")
}

func TestMenuRandomizationIsDeterministicForSameSeed(t *testing.T) {
	b, err := NewBuilder("gpt-4", CognitiveDimensions{"risk_perception"})
	require.NoError(t, err)

	req := testRequest()
	req.RandomizeMenu = true
	req.Seed = 42

	r1, err := b.Build(req)
	require.NoError(t, err)
	r2, err := b.Build(req)
	require.NoError(t, err)
	assert.Equal(t, r1.Prompt, r2.Prompt)
}

func TestBuildEmptyMemoryIncludesNoPriorExperienceMarker(t *testing.T) {
	b, err := NewBuilder("gpt-4", CognitiveDimensions{"risk_perception"})
	require.NoError(t, err)

	req := testRequest()
	req.Memory = MemorySlice{}

	result, err := b.Build(req)
	require.NoError(t, err)
	assert.Contains(t, result.Prompt, "## Memory")
	assert.Contains(t, result.Prompt, "no prior experience")
}

func TestParseOutputRejectsMissingSkillID(t *testing.T) {
	_, err := parseOutput(`{"reasoning_labels":{},"confidence":0.5}`)
	require.Error(t, err)
}

func TestParseOutputRejectsOutOfRangeConfidence(t *testing.T) {
	_, err := parseOutput(`{"skill_id":"elevate_house","confidence":1.5}`)
	require.Error(t, err)
}

func TestParseOutputAcceptsWellFormed(t *testing.T) {
	out, err := parseOutput(`{"reasoning_labels":{"risk_perception":"high"},"skill_id":"elevate_house","confidence":0.8}`)
	require.NoError(t, err)
	assert.Equal(t, "elevate_house", out.SkillID)
	assert.Equal(t, 0.8, out.Confidence)
}
