// Package broker implements the Skill Broker: the state machine that
// drives one agent decision from prompt construction through parsing,
// validation, and finalization.
package broker

import "github.com/agentskill/skillgov/pkg/validate"

// State names one broker state machine node, per spec §4.5.
type State string

const (
	StateInit                    State = "INIT"
	StateBuildPrompt             State = "BUILD_PROMPT"
	StateInvokeModel             State = "INVOKE_MODEL"
	StateParse                   State = "PARSE"
	StateValidate                State = "VALIDATE"
	StateAppendFeedback          State = "APPEND_FEEDBACK"
	StateAppendParseHint         State = "APPEND_PARSE_HINT"
	StateFinalizeApproved        State = "FINALIZE_APPROVED"
	StateFinalizeFallback        State = "FINALIZE_FALLBACK"
	StateFinalizeParseExhausted  State = "FINALIZE_PARSE_EXHAUSTED"
)

// Terminal reports whether s is one of the three terminal states.
func (s State) Terminal() bool {
	switch s {
	case StateFinalizeApproved, StateFinalizeFallback, StateFinalizeParseExhausted:
		return true
	default:
		return false
	}
}

// Outcome maps a terminal State to spec §6's fixed outcome vocabulary
// for the audit record. Non-terminal states return the empty string.
func (s State) Outcome() string {
	switch s {
	case StateFinalizeApproved:
		return "approved"
	case StateFinalizeFallback:
		return "fallback"
	case StateFinalizeParseExhausted:
		return "parse_exhausted"
	default:
		return ""
	}
}

// AttemptRecord is one INVOKE_MODEL→PARSE(→VALIDATE) round, kept for
// the audit trace and for idempotent replay.
type AttemptRecord struct {
	Attempt      int
	Prompt       string
	RawResponse  string
	ParseError   error
	Rejection    error
	Approved     bool
	ParsedOutput interface{}            // the parsed proposal, nil when parsing never succeeded
	Trace        []validate.StageVerdict // per-stage validator verdicts, set once VALIDATE runs
}

// DecisionState is the broker's per-decision state value. Immutable
// attempt inputs and strategy-owned running state are kept in
// separate, clearly named field groups, mirroring how the teacher's
// reasoning state separates agent-owned fields from strategy-owned
// fields.
type DecisionState struct {
	// Immutable per-decision inputs.
	AgentID    string
	AgentType  string
	Seed       int64
	BaseInputs DecisionInputs

	// Mutable across attempts — owned by the active retry strategy.
	State             State
	OriginalPrompt    string // the Context Builder's render, before any feedback
	CurrentPrompt     string // OriginalPrompt plus every FeedbackBlocks entry so far
	ParseRetries      int
	ValidationRetries int
	FeedbackBlocks    []string
	Attempts          []AttemptRecord
}

// DecisionInputs holds the retry budgets a decision is run with.
type DecisionInputs struct {
	MaxParseRetries      int
	MaxValidationRetries int
}
