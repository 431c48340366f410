package broker

// RetryStrategy drives one phase of the broker's retry loop (parsing
// or validation). The broker composes one strategy per phase in
// sequence, the way the teacher's reasoning engines compose a
// ReasoningStrategy for each iteration of their own loop.
type RetryStrategy interface {
	// PrepareAttempt is called before each model invocation; it may
	// mutate ds.CurrentPrompt to fold in feedback accumulated so far.
	PrepareAttempt(ds *DecisionState)

	// ShouldStop reports whether this phase's retry budget is
	// exhausted and no further attempt should be made.
	ShouldStop(ds *DecisionState) bool

	// AfterAttempt records the outcome of the most recent attempt,
	// advancing the phase's retry counters.
	AfterAttempt(ds *DecisionState, err error)

	// FeedbackInjection renders the pedagogical feedback block to
	// append to the prompt for the next attempt.
	FeedbackInjection(ds *DecisionState, err error) string
}

// parseRetryStrategy drives the PARSE phase's retry loop.
type parseRetryStrategy struct{}

func (parseRetryStrategy) PrepareAttempt(ds *DecisionState) {
	ds.CurrentPrompt = ds.BaseInputs.joinPrompt(ds)
}

func (parseRetryStrategy) ShouldStop(ds *DecisionState) bool {
	return ds.ParseRetries > ds.BaseInputs.MaxParseRetries
}

func (parseRetryStrategy) AfterAttempt(ds *DecisionState, err error) {
	if err != nil {
		ds.ParseRetries++
	}
}

func (parseRetryStrategy) FeedbackInjection(ds *DecisionState, err error) string {
	return "Your previous response could not be parsed as the required JSON object: " + err.Error() + ". Respond with only the JSON object matching the schema."
}

// validationRetryStrategy drives the VALIDATE phase's retry loop.
type validationRetryStrategy struct {
	menuText string
}

func (s validationRetryStrategy) PrepareAttempt(ds *DecisionState) {
	ds.CurrentPrompt = ds.BaseInputs.joinPrompt(ds)
}

func (validationRetryStrategy) ShouldStop(ds *DecisionState) bool {
	return ds.ValidationRetries > ds.BaseInputs.MaxValidationRetries
}

func (validationRetryStrategy) AfterAttempt(ds *DecisionState, err error) {
	if err != nil {
		ds.ValidationRetries++
	}
}

func (s validationRetryStrategy) FeedbackInjection(ds *DecisionState, err error) string {
	msg := "Your previous proposal was rejected: " + err.Error() + ". Here is the current feasible menu: " + s.menuText
	return msg
}

// joinPrompt renders the original prompt plus every accumulated
// feedback block, in order.
func (DecisionInputs) joinPrompt(ds *DecisionState) string {
	out := ds.OriginalPrompt
	for _, block := range ds.FeedbackBlocks {
		out += "\n\n" + block
	}
	return out
}

var (
	_ RetryStrategy = parseRetryStrategy{}
	_ RetryStrategy = validationRetryStrategy{}
)
