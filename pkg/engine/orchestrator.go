package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/badgecollector/badgecollector/pkg/catalog"
)

// SpanStarter starts tracing spans. Both an OpenTelemetry trace.Tracer and
// telemetry.Tracer satisfy it.
type SpanStarter interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// HandlerOutcome classifies how a handler invocation ended.
type HandlerOutcome string

const (
	// OutcomeVacuous means no target was eligible and the handler was not invoked.
	OutcomeVacuous HandlerOutcome = "vacuous"

	// OutcomeSucceeded means the handler reported success.
	OutcomeSucceeded HandlerOutcome = "succeeded"

	// OutcomeFailed means the handler reported failure, returned an error or panicked.
	OutcomeFailed HandlerOutcome = "failed"

	// OutcomeDenied means the gate refused to run the handler.
	OutcomeDenied HandlerOutcome = "denied"

	// OutcomeSkipped means the handler reported failure after recording
	// every target skipped. It counts like a failure.
	OutcomeSkipped HandlerOutcome = "skipped"
)

// HandlerResult records one handler visit.
type HandlerResult struct {
	Name     string         `json:"name" yaml:"name"`
	Phase    int            `json:"phase" yaml:"phase"`
	Eligible []string       `json:"eligible" yaml:"eligible"`
	Outcome  HandlerOutcome `json:"outcome" yaml:"outcome"`
	Detail   string         `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration time.Duration  `json:"duration" yaml:"duration"`
}

// Succeeded reports whether the handler counts as succeeded.
func (r HandlerResult) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded || r.Outcome == OutcomeVacuous
}

// RunSummary is the result of one orchestrator run.
type RunSummary struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	Account     string          `json:"account" yaml:"account"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time       `json:"completed_at" yaml:"completed_at"`
	Attempted   int             `json:"attempted" yaml:"attempted"`
	Succeeded   int             `json:"succeeded" yaml:"succeeded"`
	Interrupted bool            `json:"interrupted" yaml:"interrupted"`
	Results     []HandlerResult `json:"results" yaml:"results"`
}

// Failed returns the number of handlers that did not succeed.
func (s *RunSummary) Failed() int {
	return s.Attempted - s.Succeeded
}

// PhaseCounts returns attempted and succeeded counts for one phase.
func (s *RunSummary) PhaseCounts(phase int) (attempted, succeeded int) {
	for _, r := range s.Results {
		if r.Phase != phase {
			continue
		}
		attempted++
		if r.Succeeded() {
			succeeded++
		}
	}
	return attempted, succeeded
}

// RunOptions selects what a run does.
type RunOptions struct {
	// Account is passed to every handler.
	Account string

	// Phases restricts the run to the listed phases. Empty means all.
	Phases []int

	// RetryInterrupted makes records stranded in attempting eligible.
	RetryInterrupted bool
}

// Orchestrator walks phases in ascending order and invokes their handlers.
// Runs are strictly sequential.
type Orchestrator struct {
	catalog   *catalog.Catalog
	registry  *Registry
	tracker   *Tracker
	gate      Gate
	tracer    SpanStarter
	logger    zerolog.Logger
	observers []RunObserver
	now       func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithGate sets the admission gate consulted before each handler.
func WithGate(g Gate) OrchestratorOption {
	return func(o *Orchestrator) {
		o.gate = g
	}
}

// WithTracer sets the span starter.
func WithTracer(t SpanStarter) OrchestratorOption {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithRunObserver registers a run observer.
func WithRunObserver(obs RunObserver) OrchestratorOption {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(reg *Registry, tracker *Tracker, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		catalog:  reg.Catalog(),
		registry: reg,
		tracker:  tracker,
		tracer:   otel.Tracer("github.com/badgecollector/badgecollector/pkg/engine"),
		logger:   zerolog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one campaign pass. Handler failures never abort the run;
// only unreadable or unwritable progress does. The summary is returned even
// when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		Account:   opts.Account,
		StartedAt: o.now(),
		Results:   make([]HandlerResult, 0, o.registry.Len()),
	}
	ctx = ContextWithRunID(ctx, summary.RunID)
	logger := o.logger.With().Str("run_id", summary.RunID).Logger()

	ctx, span := o.tracer.Start(ctx, "run.execute",
		trace.WithAttributes(
			attribute.String("run.id", summary.RunID),
			attribute.String("run.account", opts.Account),
		))
	defer span.End()

	// Unreadable progress must stop the run before anything is invoked.
	if _, err := o.tracker.Snapshot(ctx); err != nil {
		summary.CompletedAt = o.now()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}

	for _, obs := range o.observers {
		obs.RunStarted(ctx, summary)
	}
	logger.Info().Str("account", opts.Account).Msg("Run started")

	err := o.runPhases(ctx, logger, opts, summary)

	summary.CompletedAt = o.now()
	span.SetAttributes(
		attribute.Int("run.attempted", summary.Attempted),
		attribute.Int("run.succeeded", summary.Succeeded),
		attribute.Bool("run.interrupted", summary.Interrupted),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	for _, obs := range o.observers {
		obs.RunFinished(ctx, summary)
	}

	logger.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Bool("interrupted", summary.Interrupted).
		Dur("duration", summary.CompletedAt.Sub(summary.StartedAt)).
		Msg("Run finished")

	return summary, err
}

func (o *Orchestrator) runPhases(ctx context.Context, logger zerolog.Logger, opts RunOptions, summary *RunSummary) error {
	for _, phase := range o.selectPhases(opts.Phases) {
		handlers := o.registry.ForPhase(phase)
		if len(handlers) == 0 {
			logger.Debug().Int("phase", phase).Msg("No handlers registered for phase")
			continue
		}

		phaseCtx, span := o.tracer.Start(ctx, "phase.execute",
			trace.WithAttributes(attribute.Int("phase", phase)))
		logger.Info().Int("phase", phase).Int("handlers", len(handlers)).Msg("Phase started")

		for _, h := range handlers {
			if phaseCtx.Err() != nil {
				summary.Interrupted = true
				span.End()
				logger.Warn().Int("phase", phase).Str("handler", h.Name).Msg("Run interrupted before handler")
				return nil
			}

			result, err := o.runHandler(phaseCtx, logger, opts, h)
			if err != nil {
				span.RecordError(err)
				span.End()
				return err
			}

			summary.Attempted++
			if result.Succeeded() {
				summary.Succeeded++
			}
			summary.Results = append(summary.Results, result)
			for _, obs := range o.observers {
				obs.HandlerFinished(phaseCtx, summary.RunID, result)
			}
		}

		attempted, succeeded := summary.PhaseCounts(phase)
		span.SetAttributes(
			attribute.Int("phase.attempted", attempted),
			attribute.Int("phase.succeeded", succeeded),
		)
		span.End()
		logger.Info().Int("phase", phase).Int("attempted", attempted).Int("succeeded", succeeded).Msg("Phase finished")
	}
	return nil
}

// selectPhases returns the catalog phases, ascending, filtered by only.
func (o *Orchestrator) selectPhases(only []int) []int {
	phases := o.catalog.Phases()
	if len(only) == 0 {
		return phases
	}
	want := make(map[int]struct{}, len(only))
	for _, p := range only {
		want[p] = struct{}{}
	}
	out := phases[:0:0]
	for _, p := range phases {
		if _, ok := want[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// runHandler visits one handler. A returned error is a store failure and
// aborts the run; everything the handler does is folded into the result.
func (o *Orchestrator) runHandler(ctx context.Context, logger zerolog.Logger, opts RunOptions, h Handler) (HandlerResult, error) {
	start := o.now()
	result := HandlerResult{Name: h.Name, Phase: h.Phase}
	hlog := logger.With().Str("handler", h.Name).Int("phase", h.Phase).Logger()

	ctx, span := o.tracer.Start(ctx, "handler.execute",
		trace.WithAttributes(
			attribute.String("handler.name", h.Name),
			attribute.Int("handler.phase", h.Phase),
		))
	defer span.End()

	progress, err := o.tracker.Snapshot(ctx)
	if err != nil {
		return result, err
	}

	for _, id := range h.Targets {
		if Eligible(progress.Record(id), opts.RetryInterrupted) {
			result.Eligible = append(result.Eligible, id)
		}
	}
	span.SetAttributes(attribute.Int("handler.eligible", len(result.Eligible)))

	if len(result.Eligible) == 0 {
		result.Outcome = OutcomeVacuous
		result.Detail = "no eligible targets"
		result.Duration = o.now().Sub(start)
		hlog.Debug().Msg("Nothing to attempt")
		return result, nil
	}

	if o.gate != nil {
		adm, gerr := o.gate.Admit(ctx, AdmissionRequest{
			Account:      opts.Account,
			Handler:      h.Name,
			Phase:        h.Phase,
			Targets:      result.Eligible,
			Requires:     h.Requires,
			NeedsAccount: h.NeedsAccount,
		})
		if gerr != nil {
			herr := NewHandlerError("admission check failed", gerr).WithHandler(h.Name).WithCode(ErrCodeGateFailed)
			return o.fail(ctx, hlog, span, result, start, herr)
		}
		if !adm.Allowed {
			if err := o.tracker.MarkAll(ctx, result.Eligible, StatusSkipped, adm.Reason); err != nil {
				return result, err
			}
			if h.Instructions != "" {
				hlog.Info().Msg("Manual steps:\n" + h.Instructions)
			}
			hlog.Warn().Str("reason", adm.Reason).Msg("Handler denied")
			result.Outcome = OutcomeDenied
			result.Detail = adm.Reason
			result.Duration = o.now().Sub(start)
			span.SetStatus(codes.Error, "denied: "+adm.Reason)
			return result, nil
		}
	}

	if err := o.tracker.MarkAll(ctx, result.Eligible, StatusAttempting, ""); err != nil {
		return result, err
	}

	hlog.Info().Strs("targets", result.Eligible).Msg("Invoking handler")
	outcome, herr := o.invoke(ctx, h, Request{
		Account:  opts.Account,
		Targets:  result.Eligible,
		Recorder: o.tracker,
		Logger:   hlog,
	})
	if herr != nil {
		return o.fail(ctx, hlog, span, result, start, herr)
	}

	after, err := o.tracker.Snapshot(context.WithoutCancel(ctx))
	if err != nil {
		return result, err
	}
	warnStranded(hlog, after, result.Eligible)

	result.Detail = outcome.Detail
	result.Duration = o.now().Sub(start)
	switch {
	case outcome.Success:
		result.Outcome = OutcomeSucceeded
		span.SetStatus(codes.Ok, "")
		hlog.Info().Str("detail", outcome.Detail).Msg("Handler succeeded")
	case allSkipped(after, result.Eligible):
		result.Outcome = OutcomeSkipped
		span.SetStatus(codes.Error, "skipped: "+outcome.Detail)
		hlog.Warn().Str("reason", outcome.Detail).Msg("Handler skipped its targets")
	default:
		result.Outcome = OutcomeFailed
		span.SetStatus(codes.Error, outcome.Detail)
		hlog.Warn().Str("detail", outcome.Detail).Msg("Handler reported failure")
	}
	return result, nil
}

func allSkipped(p Progress, ids []string) bool {
	for _, id := range ids {
		if p.StatusOf(id) != StatusSkipped {
			return false
		}
	}
	return len(ids) > 0
}

// fail marks every eligible target failed with the error text.
func (o *Orchestrator) fail(ctx context.Context, logger zerolog.Logger, span trace.Span, result HandlerResult, start time.Time, herr error) (HandlerResult, error) {
	span.RecordError(herr)
	span.SetStatus(codes.Error, herr.Error())
	logger.Error().Err(herr).Msg("Handler failed")

	// The failure must be recorded even when the run is being cancelled.
	if err := o.tracker.MarkAll(context.WithoutCancel(ctx), result.Eligible, StatusFailed, herr.Error()); err != nil {
		return result, err
	}
	result.Outcome = OutcomeFailed
	result.Detail = herr.Error()
	result.Duration = o.now().Sub(start)
	return result, nil
}

// invoke calls the handler, converting panics into handler errors.
func (o *Orchestrator) invoke(ctx context.Context, h Handler, req Request) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			req.Logger.Debug().Str("stack", string(debug.Stack())).Msg("Handler panic")
			outcome = Outcome{}
			err = NewHandlerError(fmt.Sprintf("panic: %v", r), nil).
				WithHandler(h.Name).WithCode(ErrCodeHandlerPanic)
		}
	}()

	outcome, err = h.Run(ctx, req)
	if err != nil {
		var ee *EngineError
		if !errors.As(err, &ee) {
			err = NewHandlerError("handler returned error", err).WithHandler(h.Name)
		}
	}
	return outcome, err
}

// warnStranded logs targets the handler left in attempting.
func warnStranded(logger zerolog.Logger, p Progress, ids []string) {
	for _, id := range ids {
		if p.StatusOf(id) == StatusAttempting {
			logger.Warn().Str("achievement", id).Msg("Handler returned without recording a final status")
		}
	}
}
