package validate

import "fmt"

// Severity controls whether a stage's rejection short-circuits the
// pipeline (error) or is merely recorded and the pipeline continues
// (warning). Per SPEC_FULL.md §4.4, Admissibility and
// ContextFeasibility are always error severity; other stages' severity
// is configuration-driven.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Pipeline runs an ordered sequence of stages against a RunState,
// short-circuiting on the first error-severity rejection.
type Pipeline struct {
	stages     []NamedStage
	severities map[StageName]Severity
}

// NewPipeline builds a Pipeline from order (stage names in execution
// order) and severities (stage name -> Severity; stages absent from
// this map default to SeverityError). Admissibility and
// ContextFeasibility must appear first, in that order; NewPipeline
// returns an error otherwise.
func NewPipeline(order []StageName, severities map[StageName]Severity) (*Pipeline, error) {
	if len(order) < 2 || order[0] != StageAdmissibility || order[1] != StageContextFeasibility {
		return nil, fmt.Errorf("validate: admissibility and context_feasibility must be the first two stages, got %v", order)
	}

	byName := make(map[StageName]Stage, len(order))
	for _, ns := range DefaultStages() {
		byName[ns.Name] = ns.Run
	}

	stages := make([]NamedStage, 0, len(order))
	for _, name := range order {
		run, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("validate: unknown validation stage %q", name)
		}
		stages = append(stages, NamedStage{Name: name, Run: run})
	}

	return &Pipeline{stages: stages, severities: severities}, nil
}

// Warning is a recorded non-fatal rejection from a SeverityWarning stage.
type Warning struct {
	Stage StageName
	Err   error
}

// StageVerdict is one stage's verdict, recorded whether it passed,
// warned, or rejected, so a caller (the Audit Writer) can reconstruct
// the full per-attempt validator trace spec §6 requires in
// validator_verdicts[], not just the rejection that stopped the run.
type StageVerdict struct {
	Stage StageName
	Err   error // nil when the stage passed
}

// String renders the verdict as "stage: ok" or "stage: <error>", the
// shape an audit sink persists into validator_verdicts[].
func (v StageVerdict) String() string {
	if v.Err == nil {
		return string(v.Stage) + ": ok"
	}
	return string(v.Stage) + ": " + v.Err.Error()
}

// Outcome is the pipeline's result: the resolved skill definition (once
// Admissibility has run), any error-severity rejection, and any
// warning-severity rejections encountered along the way.
type Outcome struct {
	State    *RunState
	Rejected error
	Warnings []Warning

	// Trace is the ordered verdict of every stage actually executed
	// before the pipeline stopped (whether it passed, warned, or
	// rejected).
	Trace []StageVerdict
}

// Run executes the pipeline's stages in order against rs, stopping at
// the first error-severity rejection.
func (p *Pipeline) Run(rs *RunState) Outcome {
	var warnings []Warning
	var trace []StageVerdict
	for _, ns := range p.stages {
		err := ns.Run(rs)
		trace = append(trace, StageVerdict{Stage: ns.Name, Err: err})
		if err != nil {
			sev := p.severityFor(ns.Name)
			if sev == SeverityWarning {
				warnings = append(warnings, Warning{Stage: ns.Name, Err: err})
				continue
			}
			return Outcome{State: rs, Rejected: err, Warnings: warnings, Trace: trace}
		}
	}
	return Outcome{State: rs, Warnings: warnings, Trace: trace}
}

func (p *Pipeline) severityFor(name StageName) Severity {
	if name == StageAdmissibility || name == StageContextFeasibility {
		return SeverityError
	}
	if sev, ok := p.severities[name]; ok {
		return sev
	}
	return SeverityError
}
