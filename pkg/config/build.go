package config

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/agentskill/skillgov/pkg/memory"
	"github.com/agentskill/skillgov/pkg/skill"
	"github.com/agentskill/skillgov/pkg/validate"
)

// BuildRegistry converts every configured skill into a skill.Definition
// and registers it, returning the frozen Skill Registry ready to serve
// decisions.
func (c *Config) BuildRegistry() (*skill.Registry, error) {
	reg := skill.NewRegistry()
	for _, sc := range c.SkillRegistry {
		def, err := sc.toDefinition()
		if err != nil {
			return nil, fmt.Errorf("config: skill %q: %w", sc.SkillID, err)
		}
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("config: register skill %q: %w", sc.SkillID, err)
		}
	}
	return reg, nil
}

func (sc SkillDefinitionConfig) toDefinition() (skill.Definition, error) {
	allowed := make(map[string]struct{}, len(sc.AllowedAgentTypes))
	for _, at := range sc.AllowedAgentTypes {
		allowed[at] = struct{}{}
	}

	preconditions := make([]skill.Precondition, 0, len(sc.Preconditions))
	for _, pc := range sc.Preconditions {
		source, err := toSnapshotSource(pc.Source)
		if err != nil {
			return skill.Definition{}, err
		}
		op, err := toPreconditionOp(pc.Op)
		if err != nil {
			return skill.Definition{}, err
		}
		preconditions = append(preconditions, skill.Precondition{
			Name: pc.Name, Source: source, Field: pc.Field, Op: op, Value: pc.Value,
		})
	}

	constraints := make([]skill.Constraint, 0, len(sc.Constraints))
	for _, cc := range sc.Constraints {
		kind, err := toConstraintKind(cc.Kind)
		if err != nil {
			return skill.Definition{}, err
		}
		constraints = append(constraints, skill.Constraint{
			Kind: kind, CooldownSteps: cc.CooldownSteps, AnnualLimit: cc.AnnualLimit, ExclusiveWith: cc.ExclusiveWith,
		})
	}

	effects := make([]skill.Effect, 0, len(sc.Effects))
	for _, ec := range sc.Effects {
		kind, err := toMutationKind(ec.Kind)
		if err != nil {
			return skill.Definition{}, err
		}
		effects = append(effects, skill.Effect{Field: ec.Field, Kind: kind, MinDelta: ec.MinDelta, MaxDelta: ec.MaxDelta})
	}

	return skill.Definition{
		SkillID:           sc.SkillID,
		DisplayName:       sc.DisplayName,
		Description:       sc.Description,
		AllowedAgentTypes: allowed,
		Preconditions:     preconditions,
		Constraints:       constraints,
		Effects:           effects,
		ImplementationRef: sc.ImplementationRef,
	}, nil
}

func toSnapshotSource(s string) (skill.SnapshotSource, error) {
	switch skill.SnapshotSource(s) {
	case skill.SourceAgent, skill.SourceWorld:
		return skill.SnapshotSource(s), nil
	default:
		return "", fmt.Errorf("unknown precondition source %q", s)
	}
}

func toPreconditionOp(s string) (skill.PreconditionOp, error) {
	switch skill.PreconditionOp(s) {
	case skill.OpTrue, skill.OpFalse, skill.OpEQ, skill.OpNEQ, skill.OpLT, skill.OpLTE, skill.OpGT, skill.OpGTE:
		return skill.PreconditionOp(s), nil
	default:
		return "", fmt.Errorf("unknown precondition operator %q", s)
	}
}

func toConstraintKind(s string) (skill.ConstraintKind, error) {
	switch skill.ConstraintKind(s) {
	case skill.ConstraintOnceOnly, skill.ConstraintCooldown, skill.ConstraintAnnualLimit, skill.ConstraintExclusiveWith:
		return skill.ConstraintKind(s), nil
	default:
		return "", fmt.Errorf("unknown constraint kind %q", s)
	}
}

func toMutationKind(s string) (skill.MutationKind, error) {
	switch skill.MutationKind(s) {
	case skill.MutationSetTrue, skill.MutationSetFalse, skill.MutationDelta, skill.MutationReplace:
		return skill.MutationKind(s), nil
	default:
		return "", fmt.Errorf("unknown effect mutation kind %q", s)
	}
}

// BuildMemoryEngine constructs the configured Memory Engine variant,
// wiring a Redis-backed Store when memory.backend.type is "redis".
func (c *Config) BuildMemoryEngine() (memory.Engine, error) {
	var store memory.Store
	if c.Memory.Backend.Type == "redis" {
		client := redis.NewClient(&redis.Options{Addr: c.Memory.Backend.Addr})
		rs, err := memory.NewRedisStore(memory.RedisStoreConfig{Client: client, KeyPrefix: "skillgov"})
		if err != nil {
			return nil, fmt.Errorf("config: build redis memory store: %w", err)
		}
		store = rs
	}

	return memory.NewEngine(memory.Config{
		Kind:              memory.EngineKind(c.Memory.Engine),
		WindowSize:        c.Memory.WindowSize,
		Weights:           memory.SalienceWeights(c.Memory.SalienceWeights),
		SalienceThreshold: c.Memory.SalienceThreshold,
		ReflectionPeriod:  c.Memory.ReflectionPeriod,
		Store:             store,
	})
}

// BuildValidationOrderAndSeverity translates the configured stage order
// and severities into the typed values validate.NewPipeline expects.
func (c *Config) BuildValidationOrderAndSeverity() ([]validate.StageName, map[validate.StageName]validate.Severity, error) {
	order := make([]validate.StageName, 0, len(c.Validation.Order))
	for _, s := range c.Validation.Order {
		name := validate.StageName(s)
		switch name {
		case validate.StageAdmissibility, validate.StageContextFeasibility, validate.StageInstitutional,
			validate.StageEffectSafety, validate.StageCoherence:
		default:
			return nil, nil, fmt.Errorf("config: unknown validation stage %q", s)
		}
		order = append(order, name)
	}

	severities := make(map[validate.StageName]validate.Severity, len(c.Validation.Severity))
	for stage, sev := range c.Validation.Severity {
		switch validate.Severity(sev) {
		case validate.SeverityError, validate.SeverityWarning:
			severities[validate.StageName(stage)] = validate.Severity(sev)
		default:
			return nil, nil, fmt.Errorf("config: unknown validation severity %q for stage %q", sev, stage)
		}
	}

	return order, severities, nil
}

// BuildRuleTable converts an agent type's configured coherence rule
// table into a validate.RuleTable.
func (rt RuleTableConfig) BuildRuleTable() validate.RuleTable {
	scales := make(map[string]validate.Scale, len(rt.Scales))
	for dim, labels := range rt.Scales {
		scales[dim] = validate.Scale(labels)
	}
	entries := make(map[string][]string, len(rt.Entries))
	for k, v := range rt.Entries {
		entries[k] = v
	}
	return validate.RuleTable{Scales: scales, Entries: entries}
}
