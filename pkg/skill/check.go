package skill

import (
	"fmt"

	"github.com/agentskill/skillgov/pkg/verdict"
)

// CheckAdmissibility is the first validator stage: is skillID a known
// skill this agent type is even allowed to propose. It performs no
// state inspection beyond the catalog and the agent's type.
func (r *Registry) CheckAdmissibility(skillID, agentType string) (Definition, error) {
	def, err := r.Lookup(skillID)
	if err != nil {
		return Definition{}, err
	}
	if !def.AllowsAgentType(agentType) {
		return Definition{}, verdict.Newf(verdict.ForbiddenForType,
			"skill %q is not offered to agent type %q", skillID, agentType).WithField(skillID)
	}
	return def, nil
}

// CheckFeasibility evaluates def's preconditions against agent and world
// snapshots. It is purely functional: it never mutates either snapshot
// and never raises — failures come back as a *verdict.Error describing
// which predicate failed, suitable for direct inclusion in a retry
// prompt's pedagogical feedback.
func CheckFeasibility(def Definition, agent AgentState, world WorldState) error {
	for _, pc := range def.Preconditions {
		ok, err := evaluate(pc, agent, world)
		if err != nil {
			return verdict.Newf(verdict.PreconditionFailed, "could not evaluate precondition %q: %v", pc.Name, err).WithField(pc.Field)
		}
		if !ok {
			name := pc.Name
			if name == "" {
				name = pc.Field
			}
			return verdict.Newf(verdict.PreconditionFailed, "precondition %q not satisfied", name).WithField(pc.Field)
		}
	}
	return nil
}

// CheckInstitutional evaluates def's institutional constraints against
// the agent's execution history. Order follows the spec's fixed
// precedence: once_only, then cooldown, then annual_limit, then
// exclusive_with, so the first violated rule is always the one reported.
func CheckInstitutional(def Definition, agent AgentState) error {
	for _, c := range def.Constraints {
		if c.Kind == ConstraintOnceOnly && agent.ExecutedOnce[def.SkillID] {
			return verdict.Newf(verdict.AlreadyExecuted, "skill %q may only be executed once and has already run", def.SkillID).WithField(def.SkillID)
		}
	}

	for _, c := range def.Constraints {
		if c.Kind != ConstraintCooldown {
			continue
		}
		last, executed := agent.LastStep[def.SkillID]
		if !executed {
			continue
		}
		elapsed := agent.Step - last
		if elapsed < c.CooldownSteps {
			remaining := c.CooldownSteps - elapsed
			return verdict.Newf(verdict.Cooldown, "skill %q is on cooldown for %d more step(s)", def.SkillID, remaining).WithField(def.SkillID)
		}
	}

	for _, c := range def.Constraints {
		if c.Kind != ConstraintAnnualLimit {
			continue
		}
		if agent.CountInWindow[def.SkillID] >= c.AnnualLimit {
			return verdict.Newf(verdict.QuotaExhausted, "skill %q has reached its limit of %d execution(s) for this window", def.SkillID, c.AnnualLimit).WithField(def.SkillID)
		}
	}

	for _, c := range def.Constraints {
		if c.Kind != ConstraintExclusiveWith {
			continue
		}
		for _, other := range c.ExclusiveWith {
			if agent.ExecutedOnce[other] {
				return verdict.Newf(verdict.Exclusivity, "skill %q is mutually exclusive with already-executed skill %q", def.SkillID, other).WithField(def.SkillID)
			}
		}
	}

	return nil
}

func evaluate(pc Precondition, agent AgentState, world WorldState) (bool, error) {
	var value interface{}
	var present bool
	switch pc.Source {
	case SourceAgent:
		value, present = agent.Attributes[pc.Field]
	case SourceWorld:
		value, present = world[pc.Field]
	default:
		return false, fmt.Errorf("unknown precondition source %q", pc.Source)
	}

	switch pc.Op {
	case OpTrue:
		return present && truthy(value), nil
	case OpFalse:
		return !present || !truthy(value), nil
	}

	if !present {
		return false, nil
	}

	a, aok := toFloat(value)
	b, bok := toFloat(pc.Value)

	switch pc.Op {
	case OpEQ:
		if aok && bok {
			return a == b, nil
		}
		return value == pc.Value, nil
	case OpNEQ:
		if aok && bok {
			return a != b, nil
		}
		return value != pc.Value, nil
	case OpLT:
		if !aok || !bok {
			return false, fmt.Errorf("operator %q requires numeric operands", pc.Op)
		}
		return a < b, nil
	case OpLTE:
		if !aok || !bok {
			return false, fmt.Errorf("operator %q requires numeric operands", pc.Op)
		}
		return a <= b, nil
	case OpGT:
		if !aok || !bok {
			return false, fmt.Errorf("operator %q requires numeric operands", pc.Op)
		}
		return a > b, nil
	case OpGTE:
		if !aok || !bok {
			return false, fmt.Errorf("operator %q requires numeric operands", pc.Op)
		}
		return a >= b, nil
	default:
		return false, fmt.Errorf("unknown precondition operator %q", pc.Op)
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	default:
		return true
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
