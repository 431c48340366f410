package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentskill/skillgov/pkg/fuzzy"
)

// Config is the root configuration schema, fixed by SPEC_FULL.md §6.
// The values are supplied at load time; the schema is not.
type Config struct {
	SkillRegistry []SkillDefinitionConfig     `yaml:"skill_registry"`
	AgentTypes    map[string]AgentTypeConfig  `yaml:"agent_types"`
	Broker        BrokerConfig                `yaml:"broker"`
	Memory        MemoryConfig                `yaml:"memory"`
	Validation    ValidationConfig            `yaml:"validation"`
}

// SkillDefinitionConfig is the wire shape of one skill.Definition,
// decoded from configuration and converted at load time.
type SkillDefinitionConfig struct {
	SkillID           string                 `yaml:"skill_id"`
	DisplayName       string                 `yaml:"display_name"`
	Description       string                 `yaml:"description"`
	AllowedAgentTypes []string               `yaml:"allowed_agent_types"`
	Preconditions     []PreconditionConfig   `yaml:"preconditions"`
	Constraints       []ConstraintConfig     `yaml:"constraints"`
	Effects           []EffectConfig         `yaml:"effects"`
	ImplementationRef string                 `yaml:"implementation_ref"`
}

type PreconditionConfig struct {
	Name   string      `yaml:"name"`
	Source string      `yaml:"source"`
	Field  string      `yaml:"field"`
	Op     string      `yaml:"op"`
	Value  interface{} `yaml:"value"`
}

type ConstraintConfig struct {
	Kind          string   `yaml:"kind"`
	CooldownSteps int      `yaml:"cooldown_steps"`
	AnnualLimit   int      `yaml:"annual_limit"`
	ExclusiveWith []string `yaml:"exclusive_with"`
}

type EffectConfig struct {
	Field    string  `yaml:"field"`
	Kind     string  `yaml:"kind"`
	MinDelta float64 `yaml:"min_delta"`
	MaxDelta float64 `yaml:"max_delta"`
}

// AgentTypeConfig configures one agent type's prompt template, default
// fallback skill, mutation scope, reasoning dimensions and coherence
// rule table, per SPEC_FULL.md §6.
type AgentTypeConfig struct {
	PromptTemplate      string              `yaml:"prompt_template"`
	DefaultSkill        string              `yaml:"default_skill"`
	AllowedEffects      []string            `yaml:"allowed_effects"`
	CognitiveDimensions []string            `yaml:"cognitive_dimensions"`
	CoherenceRuleTable  RuleTableConfig     `yaml:"coherence_rule_table"`
}

// RuleTableConfig is the wire shape of a validate.RuleTable: an ordinal
// Scale per dimension, plus the label-tuple -> allowed-skill-set map.
type RuleTableConfig struct {
	Scales  map[string][]string `yaml:"scales"`
	Entries map[string][]string `yaml:"entries"`
}

// BrokerConfig configures retry budgets, per-attempt timeout, menu
// randomization and invocation concurrency.
type BrokerConfig struct {
	MaxParseRetries         int  `yaml:"max_parse_retries"`
	MaxValidationRetries    int  `yaml:"max_validation_retries"`
	ModelTimeoutMS          int  `yaml:"model_timeout_ms"`
	RandomizeMenu           bool `yaml:"randomize_menu"`
	MaxConcurrentInvocations int64 `yaml:"max_concurrent_invocations"`
}

// MemoryConfig configures the Memory Engine variant and its backend.
type MemoryConfig struct {
	Engine            string             `yaml:"engine"`
	WindowSize        int                `yaml:"window_size"`
	SalienceWeights   map[string]float64 `yaml:"salience_weights"`
	ReflectionPeriod  int                `yaml:"reflection_period"`
	SalienceThreshold float64            `yaml:"salience_threshold"`
	Backend           MemoryBackendConfig `yaml:"backend"`
}

type MemoryBackendConfig struct {
	Type string `yaml:"type"` // "inprocess" or "redis"
	Addr string `yaml:"addr"`
}

// ValidationConfig configures the Validation Pipeline's stage order and
// per-stage severity, per SPEC_FULL.md §4.4.
type ValidationConfig struct {
	Order    []string          `yaml:"order"`
	Severity map[string]string `yaml:"severity"`
}

// SetDefaults fills in zero-valued fields with the core's defaults, so
// a minimal configuration file only needs to name what it wants to
// override.
func (c *Config) SetDefaults() {
	if c.Broker.MaxParseRetries <= 0 {
		c.Broker.MaxParseRetries = 2
	}
	if c.Broker.MaxValidationRetries <= 0 {
		c.Broker.MaxValidationRetries = 3
	}
	if c.Broker.ModelTimeoutMS <= 0 {
		c.Broker.ModelTimeoutMS = 30_000
	}
	if c.Broker.MaxConcurrentInvocations <= 0 {
		c.Broker.MaxConcurrentInvocations = 1
	}

	if c.Memory.Engine == "" {
		c.Memory.Engine = "window"
	}
	if c.Memory.WindowSize <= 0 {
		c.Memory.WindowSize = 10
	}
	if c.Memory.ReflectionPeriod <= 0 {
		c.Memory.ReflectionPeriod = 5
	}
	if c.Memory.Backend.Type == "" {
		c.Memory.Backend.Type = "inprocess"
	}

	if len(c.Validation.Order) == 0 {
		c.Validation.Order = []string{
			"admissibility", "context_feasibility", "institutional", "effect_safety", "coherence",
		}
	}
}

// Validate checks structural invariants Config's own type cannot
// express: every referenced default_skill must name a registered
// skill, skill IDs must be unique, the memory engine and backend enums
// must name a supported variant, and validation.order must begin with
// admissibility, context_feasibility. Unknown-name errors carry
// Levenshtein-distance "did you mean" suggestions, the same helper the
// Skill Registry uses for UNKNOWN_SKILL.
func (c *Config) Validate() error {
	skillIDs := make([]string, 0, len(c.SkillRegistry))
	seen := make(map[string]struct{}, len(c.SkillRegistry))
	for _, s := range c.SkillRegistry {
		if s.SkillID == "" {
			return fmt.Errorf("config: skill_registry entry is missing skill_id")
		}
		if _, dup := seen[s.SkillID]; dup {
			return fmt.Errorf("config: duplicate skill_id %q in skill_registry", s.SkillID)
		}
		seen[s.SkillID] = struct{}{}
		skillIDs = append(skillIDs, s.SkillID)
	}
	sort.Strings(skillIDs)

	for agentType, at := range c.AgentTypes {
		if at.DefaultSkill == "" {
			return fmt.Errorf("config: agent_types.%s is missing default_skill", agentType)
		}
		if _, ok := seen[at.DefaultSkill]; !ok {
			msg := fmt.Sprintf("config: agent_types.%s.default_skill %q is not a registered skill", agentType, at.DefaultSkill)
			if suggestions := fuzzy.Suggest(at.DefaultSkill, skillIDs, 3); len(suggestions) > 0 {
				msg += "; did you mean: " + strings.Join(suggestions, ", ") + "?"
			}
			return fmt.Errorf("%s", msg)
		}
	}

	switch c.Memory.Engine {
	case "window", "importance", "human_centric":
	default:
		return fmt.Errorf("config: memory.engine %q is not one of window, importance, human_centric", c.Memory.Engine)
	}

	switch c.Memory.Backend.Type {
	case "inprocess", "redis":
	default:
		return fmt.Errorf("config: memory.backend.type %q is not one of inprocess, redis", c.Memory.Backend.Type)
	}

	if len(c.Validation.Order) < 2 || c.Validation.Order[0] != "admissibility" || c.Validation.Order[1] != "context_feasibility" {
		return fmt.Errorf("config: validation.order must begin with [admissibility, context_feasibility], got %v", c.Validation.Order)
	}

	return nil
}
