// Package skill implements the Skill Registry: the declarative catalog
// of admissible agent behaviors, their preconditions, institutional
// constraints, and declared effects.
package skill

// MutationKind classifies how a skill's declared effect may change an
// agent-state field.
type MutationKind string

const (
	MutationSetTrue  MutationKind = "set_true"
	MutationSetFalse MutationKind = "set_false"
	MutationDelta    MutationKind = "delta"
	MutationReplace  MutationKind = "replace"
)

// Effect declares one agent-state field a skill may mutate, and the
// bounds on that mutation when it is a numeric delta.
type Effect struct {
	Field    string
	Kind     MutationKind
	MinDelta float64 // only meaningful when Kind == MutationDelta
	MaxDelta float64 // only meaningful when Kind == MutationDelta
}

// ConstraintKind identifies one institutional-constraint rule.
type ConstraintKind string

const (
	ConstraintOnceOnly      ConstraintKind = "once_only"
	ConstraintCooldown      ConstraintKind = "cooldown"
	ConstraintAnnualLimit   ConstraintKind = "annual_limit"
	ConstraintExclusiveWith ConstraintKind = "exclusive_with"
)

// Constraint is one institutional rule attached to a skill. A skill may
// carry any number of these (e.g. once_only and exclusive_with together).
type Constraint struct {
	Kind ConstraintKind

	// CooldownSteps is used when Kind == ConstraintCooldown.
	CooldownSteps int

	// AnnualLimit is used when Kind == ConstraintAnnualLimit.
	AnnualLimit int

	// ExclusiveWith is used when Kind == ConstraintExclusiveWith.
	ExclusiveWith []string
}

// PreconditionOp is the comparison applied by a Precondition.
type PreconditionOp string

const (
	OpTrue  PreconditionOp = "true"  // field must be truthy
	OpFalse PreconditionOp = "false" // field must be falsy
	OpEQ    PreconditionOp = "eq"
	OpNEQ   PreconditionOp = "neq"
	OpLT    PreconditionOp = "lt"
	OpLTE   PreconditionOp = "lte"
	OpGT    PreconditionOp = "gt"
	OpGTE   PreconditionOp = "gte"
)

// Precondition is one predicate over agent or world state that must
// evaluate true for a skill to be feasible. Source selects which
// snapshot Field is read from.
type Precondition struct {
	Name   string // human-readable name used in "INFEASIBLE: reason" menu annotations
	Source SnapshotSource
	Field  string
	Op     PreconditionOp
	Value  interface{}
}

// SnapshotSource selects which read-only snapshot a Precondition's Field
// is evaluated against.
type SnapshotSource string

const (
	SourceAgent SnapshotSource = "agent"
	SourceWorld SnapshotSource = "world"
)

// Definition is the immutable, load-time-frozen description of one
// skill. Definitions never mutate after the registry is built.
type Definition struct {
	SkillID            string
	DisplayName        string
	Description        string
	AllowedAgentTypes  map[string]struct{}
	Preconditions      []Precondition
	Constraints        []Constraint
	Effects            []Effect
	ImplementationRef  string
}

// AllowsAgentType reports whether agentType may propose this skill.
func (d Definition) AllowsAgentType(agentType string) bool {
	_, ok := d.AllowedAgentTypes[agentType]
	return ok
}

// AgentState is the core's read-only snapshot of one agent, supplied by
// the simulator for a single decision. It is never mutated by the core.
type AgentState struct {
	AgentID    string
	AgentType  string
	Step       int
	Attributes map[string]interface{}

	// ExecutedOnce records which once_only skills this agent has executed.
	ExecutedOnce map[string]bool

	// LastStep records the step at which each skill was last executed,
	// for cooldown arithmetic.
	LastStep map[string]int

	// CountInWindow records how many times each skill has executed within
	// the current annual_limit accounting window.
	CountInWindow map[string]int
}

// WorldState is the read-only world snapshot supplied by the simulator.
type WorldState map[string]interface{}
