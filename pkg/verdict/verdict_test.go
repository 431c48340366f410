package verdict

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKindOnly(t *testing.T) {
	err := Newf(Cooldown, "skill on cooldown for %d more steps", 3).WithField("elevate_house")

	assert.True(t, errors.Is(err, New(Cooldown, "")))
	assert.False(t, errors.Is(err, New(QuotaExhausted, "")))
}

func TestErrorMessageIncludesField(t *testing.T) {
	err := New(PreconditionFailed, "income below threshold").WithField("income")
	assert.Contains(t, err.Error(), "income")
	assert.Contains(t, err.Error(), "income below threshold")
}

func TestIsParseClass(t *testing.T) {
	assert.True(t, ParseError.IsParseClass())
	assert.True(t, BackendTimeout.IsParseClass())
	assert.True(t, BackendUnavailable.IsParseClass())
	assert.False(t, Cooldown.IsParseClass())
	assert.False(t, Incoherent.IsParseClass())
}

func TestRetryable(t *testing.T) {
	assert.False(t, DefaultSkillInfeasible.Retryable())
	assert.True(t, Cooldown.Retryable())
}
