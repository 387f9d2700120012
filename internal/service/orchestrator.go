package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	afotel "github.com/Strob0t/ActionForge/internal/adapter/otel"
	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
	"github.com/Strob0t/ActionForge/internal/domain/prompt"
	"github.com/Strob0t/ActionForge/internal/logger"
	"github.com/Strob0t/ActionForge/internal/port/generation"
)

// State is a step of one orchestration.
type State string

const (
	StateIdle              State = "idle"
	StateValidatingInput   State = "validating_input"
	StateInvokingModel     State = "invoking_model"
	StateNormalizingOutput State = "normalizing_output"
	StateDone              State = "done"
	StateErrored           State = "errored"
)

// FallbackReasonInvalidInput is the reason attached when the interaction has
// no usable source.
const FallbackReasonInvalidInput = "Invalid input: interaction source is required"

// errPanic marks a recovered panic in a collaborator.
var errPanic = errors.New("orchestration panicked")

// Request is one orchestration input.
type Request struct {
	Interaction interaction.Interaction      `json:"interaction"`
	Related     *interaction.RelatedEntities `json:"related_entities,omitempty"`
	Policy      *policy.Policy               `json:"policy,omitempty"`
}

// Result is the outcome of one orchestration. Output is always well formed.
// Err carries the failure behind an errored result for logging and metrics;
// it is never surfaced as the return value of Orchestrate.
type Result struct {
	Output     action.Output     `json:"output"`
	Evaluation policy.Evaluation `json:"evaluation"`
	State      State             `json:"state"`
	Dropped    int               `json:"dropped"`
	Model      string            `json:"model,omitempty"`
	Err        error             `json:"-"`
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock used for follow-up scheduling.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records orchestration metrics.
func WithMetrics(m *afotel.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithAppendFollowups appends follow-up task companions to the returned actions.
func WithAppendFollowups(on bool) EngineOption {
	return func(e *Engine) { e.appendFollowups = on }
}

// Engine turns an interaction into a validated list of proposed actions.
// It holds no state across calls and is safe for concurrent use.
type Engine struct {
	gen             generation.Generator
	now             func() time.Time
	metrics         *afotel.Metrics
	appendFollowups bool
}

// NewEngine creates an Engine that calls gen once per orchestration.
func NewEngine(gen generation.Generator, opts ...EngineOption) *Engine {
	e := &Engine{gen: gen, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Orchestrate runs one orchestration. It never fails: degraded paths return
// a single log_action fallback explaining what went wrong.
func (e *Engine) Orchestrate(ctx context.Context, req Request) (res Result) {
	ctx = logger.WithSource(ctx, string(req.Interaction.Source))
	ctx, span := afotel.StartOrchestrationSpan(ctx, string(req.Interaction.Source), req.Policy != nil)

	state := StateIdle
	step := func(next State) {
		slog.DebugContext(ctx, "orchestration state", "from", state, "to", next)
		state = next
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", errPanic, r)
			slog.ErrorContext(ctx, "orchestration panic recovered", "state", state, "error", err)
			step(StateErrored)
			res = e.fallback(ctx, req, action.FallbackReasonModelError, "panic", err)
		}
		res.State = state
		e.metrics.RecordOrchestration(ctx, string(res.State), string(req.Interaction.Source),
			len(res.Output.Actions), res.Dropped, res.Evaluation.AutoEligibleCount())
		afotel.EndSpan(span, res.Err)
	}()

	step(StateValidatingInput)
	if err := req.Interaction.Validate(); err != nil {
		slog.WarnContext(ctx, "orchestration rejected input", "error", err)
		step(StateErrored)
		return e.fallback(ctx, req, FallbackReasonInvalidInput, "invalid_input", err)
	}

	step(StateInvokingModel)
	gen, err := e.generate(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "model call failed", "error_class", generation.Class(err), "error", err)
		step(StateErrored)
		return e.fallback(ctx, req, action.FallbackReasonModelError, generation.Class(err), err)
	}

	step(StateNormalizingOutput)
	vr := action.Validate(gen.Raw)
	if vr.Dropped > 0 {
		slog.InfoContext(ctx, "dropped invalid actions", "dropped", vr.Dropped, "kept", len(vr.Actions))
	}

	res = Result{
		Output:  action.Output{Actions: vr.Actions},
		Dropped: vr.Dropped,
		Model:   gen.Model,
	}
	res.Evaluation = e.evaluate(req, res.Output.Actions)
	if e.appendFollowups && len(res.Evaluation.Companions) > 0 {
		res.Output.Actions = append(res.Output.Actions, res.Evaluation.Companions...)
	}

	step(StateDone)
	return res
}

// generate composes the prompt and makes the single backend call.
func (e *Engine) generate(ctx context.Context, req Request) (*generation.Result, error) {
	if e.gen == nil {
		return nil, fmt.Errorf("%w: no generator configured", generation.ErrBackendUnavailable)
	}
	p, err := prompt.Compose(prompt.Input{
		Interaction: req.Interaction,
		Related:     req.Related,
		Policy:      req.Policy,
	})
	if err != nil {
		return nil, fmt.Errorf("compose prompt: %w", err)
	}

	ctx, span := afotel.StartModelSpan(ctx)
	start := time.Now()
	out, err := e.gen.Generate(ctx, generation.Request{System: p.System, User: p.User, Schema: p.Schema})
	var in, outTokens int
	if out != nil {
		in, outTokens = out.TokensIn, out.TokensOut
	}
	e.metrics.RecordModelCall(ctx, time.Since(start), generation.Class(err), in, outTokens)
	afotel.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty result", generation.ErrInvalidResponseShape)
	}
	return out, nil
}

func (e *Engine) fallback(ctx context.Context, req Request, reason, class string, cause error) Result {
	out := action.FallbackOutput(reason)
	e.metrics.RecordFallback(ctx, class)
	return Result{
		Output:     out,
		Evaluation: e.evaluate(req, out.Actions),
		Err:        cause,
	}
}

// abandon returns the errored fallback for a request that was never started.
func (e *Engine) abandon(ctx context.Context, req Request, cause error) Result {
	res := e.fallback(ctx, req, action.FallbackReasonModelError, generation.Class(cause), cause)
	res.State = StateErrored
	return res
}

func (e *Engine) evaluate(req Request, actions []action.Action) policy.Evaluation {
	opts := policy.Options{Now: e.now()}
	if req.Related != nil && req.Related.Deal != nil {
		opts.CurrentStage = req.Related.Deal.Stage
		opts.CurrentProbability = req.Related.Deal.Probability
	}
	return policy.Evaluate(actions, req.Policy, opts)
}
