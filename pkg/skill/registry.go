package skill

import (
	"sort"

	"github.com/agentskill/skillgov/pkg/fuzzy"
	"github.com/agentskill/skillgov/pkg/registry"
	"github.com/agentskill/skillgov/pkg/verdict"
)

// Registry is the Skill Registry: the frozen catalog of every skill a
// simulation may offer its agents, built once at load time from
// configuration and never mutated afterward.
type Registry struct {
	base *registry.BaseRegistry[Definition]
}

// NewRegistry returns an empty registry. Load it via Register before
// serving any agent decision.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Definition]()}
}

// Register adds one skill definition to the catalog. It is an error to
// register the same SkillID twice.
func (r *Registry) Register(def Definition) error {
	return r.base.Register(def.SkillID, def)
}

// Count returns the number of registered skills.
func (r *Registry) Count() int {
	return r.base.Count()
}

// Lookup resolves a skill ID to its definition. If the ID is not
// registered, it returns an UNKNOWN_SKILL error carrying nearest-name
// suggestions drawn from the full catalog.
func (r *Registry) Lookup(skillID string) (Definition, error) {
	def, ok := r.base.Get(skillID)
	if ok {
		return def, nil
	}

	known := make([]string, 0, r.base.Count())
	for _, d := range r.base.List() {
		known = append(known, d.SkillID)
	}
	suggestions := fuzzy.Suggest(skillID, known, 3)

	msg := "no such skill in the registry"
	if len(suggestions) > 0 {
		msg = "no such skill in the registry; did you mean: " + joinComma(suggestions) + "?"
	}
	return Definition{}, verdict.New(verdict.UnknownSkill, msg).WithField(skillID)
}

// SkillsFor returns every registered skill whose AllowedAgentTypes
// includes agentType, sorted by SkillID for deterministic menu order
// prior to any configured randomization.
func (r *Registry) SkillsFor(agentType string) []Definition {
	var out []Definition
	for _, d := range r.base.List() {
		if d.AllowsAgentType(agentType) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SkillID < out[j].SkillID })
	return out
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
