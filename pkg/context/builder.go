package context

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkoukk/tiktoken-go"

	"github.com/agentskill/skillgov/pkg/skill"
	"github.com/agentskill/skillgov/pkg/verdict"
)

// Builder assembles prompts and output schemas. It is a pure function
// of its inputs plus the Request's explicit Seed; construct one per
// process and reuse it, since it caches the token encoding and the
// reflected output schema.
type Builder struct {
	mu       sync.Mutex
	encoding *tiktoken.Tiktoken
	schema   map[string]interface{}
	dims     CognitiveDimensions
}

// NewBuilder returns a Builder that renders reasoning_labels for the
// given cognitive dimensions, counting tokens with model's encoding
// (falling back to cl100k_base when model is unrecognized).
func NewBuilder(model string, dims CognitiveDimensions) (*Builder, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("context: failed to load token encoding: %w", err)
		}
	}

	schema, err := outputSchema()
	if err != nil {
		return nil, err
	}

	return &Builder{encoding: encoding, schema: schema, dims: dims}, nil
}

func outputSchema() (map[string]interface{}, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Output))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("context: marshal output schema: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("context: unmarshal output schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// Build assembles the fixed-order sections from spec §4.3: system
// preamble, agent identity, world summary, social signals, memory
// slice, skill menu, cognitive-appraisal schema. Sections after the
// skill menu are never truncated for budget; the memory slice is
// truncated first, then social signals, when TokenBudget is exceeded.
func (b *Builder) Build(req Request) (Result, error) {
	menu := req.Menu
	if req.RandomizeMenu {
		menu = shuffledMenu(menu, req.Seed)
	} else {
		menu = sortedMenu(menu)
	}

	memoryTexts := append([]string(nil), req.Memory.Texts...)
	socialSignals := append([]SocialSignal(nil), req.SocialSignals...)

	render := func(memory []string, social []SocialSignal) string {
		var sb strings.Builder
		sb.WriteString(b.renderPreamble())
		sb.WriteString(b.renderAgentIdentity(req.Agent))
		sb.WriteString(b.renderWorldSummary(req.World))
		sb.WriteString(b.renderSocialSignals(social))
		sb.WriteString(b.renderMemory(memory))
		sb.WriteString(b.renderMenu(menu))
		sb.WriteString(b.renderSchemaSection())
		return sb.String()
	}

	prompt := render(memoryTexts, socialSignals)
	tokenCount := b.countTokens(prompt)

	if req.TokenBudget > 0 {
		for tokenCount > req.TokenBudget && len(memoryTexts) > 0 {
			memoryTexts = memoryTexts[:len(memoryTexts)-1]
			prompt = render(memoryTexts, socialSignals)
			tokenCount = b.countTokens(prompt)
		}
		for tokenCount > req.TokenBudget && len(socialSignals) > 0 {
			socialSignals = socialSignals[:len(socialSignals)-1]
			prompt = render(memoryTexts, socialSignals)
			tokenCount = b.countTokens(prompt)
		}
	}

	return Result{
		Prompt:     prompt,
		Schema:     b.schema,
		TokenCount: tokenCount,
		Parse:      parseOutput,
	}, nil
}

func (b *Builder) countTokens(text string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.encoding.Encode(text, nil, nil))
}

func (b *Builder) renderPreamble() string {
	var sb strings.Builder
	sb.WriteString("# Decision Task\n")
	sb.WriteString("You are making one decision for the agent described below. ")
	sb.WriteString("Choose exactly one skill from the menu and fill the output schema.\n\n")
	return sb.String()
}

func (b *Builder) renderAgentIdentity(agent skill.AgentState) string {
	var sb strings.Builder
	sb.WriteString("## Agent\n")
	sb.WriteString(fmt.Sprintf("id: %s\ntype: %s\nstep: %d\n", agent.AgentID, agent.AgentType, agent.Step))
	keys := sortedKeys(agent.Attributes)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%s: %v\n", k, agent.Attributes[k]))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (b *Builder) renderWorldSummary(world skill.WorldState) string {
	var sb strings.Builder
	sb.WriteString("## World\n")
	keys := sortedKeys(world)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%s: %v\n", k, world[k]))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (b *Builder) renderSocialSignals(signals []SocialSignal) string {
	if len(signals) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Social Signals\n")
	for _, s := range signals {
		sb.WriteString(fmt.Sprintf("- from %s: %s\n", s.FromAgentID, s.Text))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (b *Builder) renderMemory(texts []string) string {
	var sb strings.Builder
	sb.WriteString("## Memory\n")
	if len(texts) == 0 {
		sb.WriteString("no prior experience.\n")
		sb.WriteString("\n")
		return sb.String()
	}
	for _, t := range texts {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (b *Builder) renderMenu(menu []MenuEntry) string {
	var sb strings.Builder
	sb.WriteString("## Skill Menu\n")
	for _, entry := range menu {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s", entry.Definition.SkillID, entry.Definition.DisplayName, entry.Definition.Description))
		if !entry.Feasible() {
			sb.WriteString(fmt.Sprintf(" [INFEASIBLE: %s]", strings.Join(entry.InfeasibleReasons, "; ")))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (b *Builder) renderSchemaSection() string {
	schemaJSON, _ := json.MarshalIndent(b.schema, "", "  ")
	var sb strings.Builder
	sb.WriteString("## Output Schema\n")
	sb.WriteString("Respond with a single JSON object matching this schema. ")
	sb.WriteString("reasoning_labels must include an entry for each of: ")
	sb.WriteString(strings.Join(b.dims, ", "))
	sb.WriteString(".\n")
	sb.Write(schemaJSON)
	sb.WriteString("\n")
	return sb.String()
}

func sortedMenu(menu []MenuEntry) []MenuEntry {
	out := append([]MenuEntry(nil), menu...)
	sort.Slice(out, func(i, j int) bool { return out[i].Definition.SkillID < out[j].Definition.SkillID })
	return out
}

// shuffledMenu deterministically shuffles menu using seed, so the same
// seed and the same menu always produce the same order.
func shuffledMenu(menu []MenuEntry, seed int64) []MenuEntry {
	out := sortedMenu(menu)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseOutput(raw string) (Output, error) {
	var out Output
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Output{}, verdict.Newf(verdict.ParseError, "model output is not valid JSON: %v", err)
	}
	if out.SkillID == "" {
		return Output{}, verdict.New(verdict.ParseError, "output is missing skill_id").WithField("skill_id")
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return Output{}, verdict.Newf(verdict.ParseError, "confidence %v is outside [0,1]", out.Confidence).WithField("confidence")
	}
	return out, nil
}
