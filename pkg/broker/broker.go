package broker

import (
	stdcontext "context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/agentskill/skillgov/pkg/audit"
	buildcontext "github.com/agentskill/skillgov/pkg/context"
	"github.com/agentskill/skillgov/pkg/logger"
	"github.com/agentskill/skillgov/pkg/memory"
	"github.com/agentskill/skillgov/pkg/skill"
	"github.com/agentskill/skillgov/pkg/validate"
	"github.com/agentskill/skillgov/pkg/verdict"
)

// Config configures a Broker.
type Config struct {
	Registry             *skill.Registry
	Pipeline             *validate.Pipeline
	Builder              *buildcontext.Builder
	Memory               memory.Engine
	Model                ModelAdapter
	Audit                audit.Sink

	// MaxParseRetries and MaxValidationRetries are each the budget of
	// additional attempts after the first, per spec §4.5/§8: total
	// attempts for a phase is budget+1. nil means "unset" and defaults
	// to 2 and 3 respectively; an explicit 0 is a valid configuration
	// meaning a single attempt only (see §8's max_validation_retries=0
	// boundary) and is never clamped away.
	MaxParseRetries      *int
	MaxValidationRetries *int

	MaxConcurrent int64 // default 1; bounds simultaneous model invocations

	// DefaultSkills maps agent type to its configured default_skill,
	// used by the fallback policy when validation retries exhaust.
	DefaultSkills map[string]string

	// AllowedEffects maps agent type to the set of agent-state fields
	// its skills may mutate, consumed by the effect-safety validator.
	AllowedEffects map[string]map[string]struct{}

	RuleTable  validate.RuleTable
	Dimensions []string
}

// Broker drives one agent decision through the state machine in
// spec §4.5.
type Broker struct {
	cfg Config
	sem *semaphore.Weighted
}

// New constructs a Broker from cfg, applying defaults for unset (nil)
// retry budgets and for a non-positive concurrency limit.
func New(cfg Config) (*Broker, error) {
	if cfg.Registry == nil || cfg.Pipeline == nil || cfg.Builder == nil || cfg.Model == nil {
		return nil, fmt.Errorf("broker: Registry, Pipeline, Builder, and Model are required")
	}
	if cfg.MaxParseRetries == nil {
		cfg.MaxParseRetries = intPtr(2)
	}
	if cfg.MaxValidationRetries == nil {
		cfg.MaxValidationRetries = intPtr(3)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Broker{cfg: cfg, sem: semaphore.NewWeighted(cfg.MaxConcurrent)}, nil
}

func intPtr(v int) *int { return &v }

// Request is the input to one decision.
type Request struct {
	AgentID       string
	AgentType     string
	Agent         skill.AgentState
	World         skill.WorldState
	SocialSignals []buildcontext.SocialSignal
	MemoryK       int
	Seed          int64
	RandomizeMenu bool
	TokenBudget   int
}

// Decision is the broker's finalized result for one agent.
type Decision struct {
	State    State
	SkillID  string // empty when the decision is null (FINALIZE_PARSE_EXHAUSTED with no usable default)
	Output   buildcontext.Output
	Attempts []AttemptRecord
}

// Decide drives req through BUILD_PROMPT → INVOKE_MODEL → PARSE →
// VALIDATE, retrying per the configured budgets, finalizing into one
// of the three terminal states, recording an audit entry, and updating
// the memory engine before returning.
func (b *Broker) Decide(ctx stdcontext.Context, req Request) (Decision, error) {
	runID := uuid.NewString()
	log := logger.GetLogger().With("run_id", runID, "agent_id", req.AgentID, "agent_type", req.AgentType, "step", req.Agent.Step)

	menu := b.buildMenu(req.AgentType, req.Agent, req.World)

	if defaultID, ok := b.cfg.DefaultSkills[req.AgentType]; ok && onlyDefaultFeasible(menu, defaultID) {
		log.Debug("all non-default skills infeasible, skipping invocation", "default_skill_id", defaultID)
		decision := Decision{
			State:   StateFinalizeApproved,
			SkillID: defaultID,
			Output:  buildcontext.Output{SkillID: defaultID},
		}
		return b.finalize(ctx, req, runID, decision, log)
	}

	memorySlice := buildcontext.MemorySlice{}
	if b.cfg.Memory != nil {
		events, err := b.cfg.Memory.Retrieve(ctx, req.AgentID, req.MemoryK)
		if err != nil {
			log.Error("memory retrieve failed", "error", err)
			return Decision{}, fmt.Errorf("broker: memory retrieve: %w", err)
		}
		for _, e := range events {
			if e.Text != "" {
				memorySlice.Texts = append(memorySlice.Texts, e.Text)
			}
		}
	}

	result, err := b.cfg.Builder.Build(buildcontext.Request{
		Agent:         req.Agent,
		World:         req.World,
		SocialSignals: req.SocialSignals,
		Memory:        memorySlice,
		Menu:          menu,
		RandomizeMenu: req.RandomizeMenu,
		Seed:          req.Seed,
		TokenBudget:   req.TokenBudget,
	})
	if err != nil {
		log.Error("prompt build failed", "error", err)
		return Decision{}, fmt.Errorf("broker: build prompt: %w", err)
	}
	log.Debug("state transition", "state", StateBuildPrompt)

	ds := &DecisionState{
		AgentID:        req.AgentID,
		AgentType:      req.AgentType,
		Seed:           req.Seed,
		OriginalPrompt: result.Prompt,
		CurrentPrompt:  result.Prompt,
		State:          StateBuildPrompt,
		BaseInputs: DecisionInputs{
			MaxParseRetries:      *b.cfg.MaxParseRetries,
			MaxValidationRetries: *b.cfg.MaxValidationRetries,
		},
	}

	parseStrategy := parseRetryStrategy{}
	validationStrategy := validationRetryStrategy{menuText: renderMenuText(menu)}

	decision := b.run(ctx, ds, result, req, parseStrategy, validationStrategy, log)

	return b.finalize(ctx, req, runID, decision, log)
}

// finalize writes the audit record and updates the memory engine for a
// terminal decision, then returns it unchanged. Every exit from Decide
// — the zero-attempt default shortcut included — passes through here so
// both are recorded exactly once per decision.
func (b *Broker) finalize(ctx stdcontext.Context, req Request, runID string, decision Decision, log *slog.Logger) (Decision, error) {
	retryCount := len(decision.Attempts)
	if retryCount > 0 {
		retryCount--
	}

	log.Info("decision finalized", "outcome", decision.State.Outcome(), "retry_count", retryCount, "skill_id", decision.SkillID)

	if b.cfg.Audit != nil {
		if err := b.cfg.Audit.Write(ctx, audit.Record{
			RunID:        runID,
			AgentID:      req.AgentID,
			AgentType:    req.AgentType,
			Step:         req.Agent.Step,
			Outcome:      decision.State.Outcome(),
			FinalSkillID: decision.SkillID,
			RetryCount:   retryCount,
			Attempts:     auditAttempts(decision.Attempts),
			Payload:      decision.Attempts,
		}); err != nil {
			log.Error("audit write failed", "error", err)
			return decision, fmt.Errorf("broker: audit write: %w", err)
		}
	}

	if b.cfg.Memory != nil && decision.SkillID != "" {
		b.cfg.Memory.Record(memoryEventFor(req, decision))
	}

	return decision, nil
}

// auditAttempts converts the broker's internal attempt trace into the
// fixed per-attempt shape spec §6 requires for the audit record.
func auditAttempts(attempts []AttemptRecord) []audit.AttemptEntry {
	out := make([]audit.AttemptEntry, 0, len(attempts))
	for _, a := range attempts {
		entry := audit.AttemptEntry{
			PromptHash:     promptHash(a.Prompt),
			RawOutput:      a.RawResponse,
			ParsedProposal: a.ParsedOutput,
		}
		for _, v := range a.Trace {
			entry.ValidatorVerdicts = append(entry.ValidatorVerdicts, v.String())
		}
		switch {
		case a.ParseError != nil:
			entry.PedagogicalMessage = a.ParseError.Error()
		case a.Rejection != nil:
			entry.PedagogicalMessage = a.Rejection.Error()
		}
		out = append(out, entry)
	}
	return out
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// onlyDefaultFeasible reports whether defaultID is the only feasible
// entry in menu: the default itself must be feasible, and every other
// entry must be infeasible. Used to apply spec's zero-attempt shortcut
// when there is no real choice for the model to make.
func onlyDefaultFeasible(menu []buildcontext.MenuEntry, defaultID string) bool {
	defaultFeasible := false
	for _, entry := range menu {
		if entry.Definition.SkillID == defaultID {
			if !entry.Feasible() {
				return false
			}
			defaultFeasible = true
			continue
		}
		if entry.Feasible() {
			return false
		}
	}
	return defaultFeasible
}

func (b *Broker) run(ctx stdcontext.Context, ds *DecisionState, result buildcontext.Result, req Request, parseStrategy parseRetryStrategy, validationStrategy validationRetryStrategy, log *slog.Logger) Decision {
	for {
		parseStrategy.PrepareAttempt(ds)
		ds.CurrentPrompt = ds.OriginalPrompt
		for _, block := range ds.FeedbackBlocks {
			ds.CurrentPrompt += "\n\n" + block
		}

		ds.State = StateInvokeModel
		log.Debug("state transition", "state", ds.State, "attempt", len(ds.Attempts)+1)
		raw, invokeErr := b.invoke(ctx, ds.CurrentPrompt, result.Schema, ds.Seed)

		record := AttemptRecord{Attempt: len(ds.Attempts) + 1, Prompt: ds.CurrentPrompt}

		if invokeErr != nil {
			log.Warn("model backend call failed", "attempt", record.Attempt, "error", invokeErr)
			record.ParseError = invokeErr
			ds.Attempts = append(ds.Attempts, record)
			parseStrategy.AfterAttempt(ds, invokeErr)
			if parseStrategy.ShouldStop(ds) {
				ds.State = StateFinalizeParseExhausted
				return Decision{State: ds.State, Attempts: ds.Attempts}
			}
			ds.FeedbackBlocks = append(ds.FeedbackBlocks, parseStrategy.FeedbackInjection(ds, invokeErr))
			ds.State = StateAppendParseHint
			log.Debug("retrying after parse-phase failure", "parse_retries", ds.ParseRetries)
			continue
		}

		record.RawResponse = raw
		ds.State = StateParse
		log.Debug("state transition", "state", ds.State)
		output, parseErr := result.Parse(raw)
		if parseErr != nil {
			log.Debug("model output failed to parse", "attempt", record.Attempt, "error", parseErr)
			record.ParseError = parseErr
			ds.Attempts = append(ds.Attempts, record)
			parseStrategy.AfterAttempt(ds, parseErr)
			if parseStrategy.ShouldStop(ds) {
				ds.State = StateFinalizeParseExhausted
				return Decision{State: ds.State, Attempts: ds.Attempts}
			}
			ds.FeedbackBlocks = append(ds.FeedbackBlocks, parseStrategy.FeedbackInjection(ds, parseErr))
			ds.State = StateAppendParseHint
			log.Debug("retrying after parse-phase failure", "parse_retries", ds.ParseRetries)
			continue
		}
		record.ParsedOutput = output

		ds.State = StateValidate
		log.Debug("state transition", "state", ds.State, "proposed_skill_id", output.SkillID)
		rs := &validate.RunState{
			Registry:       b.cfg.Registry,
			Output:         output,
			Agent:          req.Agent,
			World:          req.World,
			AllowedEffects: b.cfg.AllowedEffects[req.AgentType],
			RuleTable:      b.cfg.RuleTable,
			Dimensions:     b.cfg.Dimensions,
			DefaultSkillID: b.cfg.DefaultSkills[req.AgentType],
		}
		outcome := b.cfg.Pipeline.Run(rs)
		record.Trace = outcome.Trace

		if outcome.Rejected == nil {
			record.Approved = true
			ds.Attempts = append(ds.Attempts, record)
			ds.State = StateFinalizeApproved
			return Decision{State: ds.State, SkillID: output.SkillID, Output: output, Attempts: ds.Attempts}
		}

		log.Debug("validator rejected proposal", "attempt", record.Attempt, "skill_id", output.SkillID, "error", outcome.Rejected)
		record.Rejection = outcome.Rejected
		ds.Attempts = append(ds.Attempts, record)
		validationStrategy.AfterAttempt(ds, outcome.Rejected)
		if validationStrategy.ShouldStop(ds) {
			return b.fallback(req, ds, log)
		}
		ds.FeedbackBlocks = append(ds.FeedbackBlocks, validationStrategy.FeedbackInjection(ds, outcome.Rejected))
		ds.State = StateAppendFeedback
		log.Debug("retrying after validation-phase rejection", "validation_retries", ds.ValidationRetries)
	}
}

// fallback executes the agent type's configured default skill. If even
// the default fails the institutional check, the decision is a null
// decision recorded as FINALIZE_PARSE_EXHAUSTED, per spec §4.5.
func (b *Broker) fallback(req Request, ds *DecisionState, log *slog.Logger) Decision {
	defaultID, ok := b.cfg.DefaultSkills[req.AgentType]
	if !ok {
		log.Warn("validation retries exhausted with no default skill configured")
		ds.State = StateFinalizeParseExhausted
		return Decision{State: ds.State, Attempts: ds.Attempts}
	}

	def, err := b.cfg.Registry.Lookup(defaultID)
	if err != nil {
		log.Warn("default skill not found in registry", "default_skill_id", defaultID, "error", err)
		ds.State = StateFinalizeParseExhausted
		return Decision{State: ds.State, Attempts: ds.Attempts}
	}

	if err := skill.CheckInstitutional(def, req.Agent); err != nil {
		log.Warn("default skill also failed institutional check", "default_skill_id", defaultID, "error", err)
		ds.State = StateFinalizeParseExhausted
		return Decision{State: ds.State, Attempts: ds.Attempts}
	}

	log.Debug("falling back to default skill", "default_skill_id", defaultID)
	ds.State = StateFinalizeFallback
	return Decision{
		State:    ds.State,
		SkillID:  def.SkillID,
		Output:   buildcontext.Output{SkillID: def.SkillID},
		Attempts: ds.Attempts,
	}
}

func (b *Broker) invoke(ctx stdcontext.Context, prompt string, schema map[string]interface{}, seed int64) (string, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", verdict.Newf(verdict.BackendUnavailable, "could not acquire invocation slot: %v", err)
	}
	defer b.sem.Release(1)

	raw, err := b.cfg.Model.Invoke(ctx, prompt, schema, seed)
	if err != nil {
		return "", verdict.Newf(verdict.BackendUnavailable, "model backend error: %v", err)
	}
	return raw, nil
}

func (b *Broker) buildMenu(agentType string, agent skill.AgentState, world skill.WorldState) []buildcontext.MenuEntry {
	defs := b.cfg.Registry.SkillsFor(agentType)
	menu := make([]buildcontext.MenuEntry, 0, len(defs))
	for _, def := range defs {
		entry := buildcontext.MenuEntry{Definition: def}
		if err := skill.CheckFeasibility(def, agent, world); err != nil {
			entry.InfeasibleReasons = []string{err.Error()}
		}
		menu = append(menu, entry)
	}
	return menu
}

func renderMenuText(menu []buildcontext.MenuEntry) string {
	var sb strings.Builder
	for _, entry := range menu {
		sb.WriteString(entry.Definition.SkillID)
		if !entry.Feasible() {
			sb.WriteString(" [INFEASIBLE: ")
			sb.WriteString(strings.Join(entry.InfeasibleReasons, "; "))
			sb.WriteString("]")
		}
		sb.WriteString("; ")
	}
	return sb.String()
}

func memoryEventFor(req Request, decision Decision) memory.Event {
	return memory.Event{
		AgentID: req.AgentID,
		Step:    req.Agent.Step,
		Text:    fmt.Sprintf("executed %s", decision.SkillID),
		Fields:  map[string]interface{}{"skill_id": decision.SkillID},
	}
}

// DecideAll drives a batch of decisions concurrently through a
// capacity-bounded worker group. Every request is run; if any Decide
// call returns an error, DecideAll returns the first such error along
// with the decisions that did complete. Each
// decision's own validation/parse failures are already absorbed into
// its own fallback/finalization and never surface as a DecideAll error.
func (b *Broker) DecideAll(ctx stdcontext.Context, reqs []Request) ([]Decision, error) {
	decisions := make([]Decision, len(reqs))
	var g errgroup.Group
	g.SetLimit(int(b.cfg.MaxConcurrent))

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			d, err := b.Decide(ctx, req)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return decisions, err
	}
	return decisions, nil
}
