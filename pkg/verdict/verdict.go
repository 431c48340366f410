// Package verdict defines the shared error-kind vocabulary used across
// the skill registry, the validation pipeline, and the broker: every
// rejection, parse failure, and backend error is a value of this type,
// never an exception, so the pedagogical message travels with the error
// and callers can branch with errors.As instead of string matching.
package verdict

import "fmt"

// Kind identifies one outcome in the governance error taxonomy.
type Kind string

const (
	UnknownSkill           Kind = "UNKNOWN_SKILL"
	ForbiddenForType       Kind = "FORBIDDEN_FOR_TYPE"
	PreconditionFailed     Kind = "PRECONDITION_FAILED"
	AlreadyExecuted        Kind = "ALREADY_EXECUTED"
	Cooldown               Kind = "COOLDOWN"
	QuotaExhausted         Kind = "QUOTA_EXHAUSTED"
	Exclusivity            Kind = "EXCLUSIVITY"
	UnsafeEffect           Kind = "UNSAFE_EFFECT"
	Incoherent             Kind = "INCOHERENT"
	ParseError             Kind = "PARSE_ERROR"
	BackendTimeout         Kind = "BACKEND_TIMEOUT"
	BackendUnavailable     Kind = "BACKEND_UNAVAILABLE"
	DefaultSkillInfeasible Kind = "DEFAULT_SKILL_INFEASIBLE"
)

// Error is a typed, data-carrying rejection. Field names the offending
// predicate/field when applicable; Message is the pedagogical text meant
// to be appended to the retry prompt.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithField returns a copy of the error with Field set.
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, verdict.New(verdict.Cooldown, "")) works regardless of
// the wrapped message or field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether this kind counts against a retry budget
// rather than terminating the decision outright.
func (k Kind) Retryable() bool {
	switch k {
	case DefaultSkillInfeasible:
		return false
	default:
		return true
	}
}

// IsParseClass reports whether this kind is accounted against the parse
// retry budget (malformed output or a backend failure), as opposed to
// the validation retry budget.
func (k Kind) IsParseClass() bool {
	switch k {
	case ParseError, BackendTimeout, BackendUnavailable:
		return true
	default:
		return false
	}
}
