package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/catalog"
)

// Capabilities a handler can require.
const (
	CapabilityCLI     = "cli"
	CapabilityBrowser = "browser"
)

// Request is what a handler receives.
type Request struct {
	// Account is the platform account the campaign runs for.
	Account string

	// Targets are the eligible targets, in declaration order.
	Targets []string

	// Recorder is the only way a handler may change progress.
	Recorder Recorder

	// Logger is scoped to the handler.
	Logger zerolog.Logger
}

// Outcome is a handler's overall verdict. Per-target results are recorded
// through the Recorder.
type Outcome struct {
	Success bool
	Detail  string
}

// HandlerFunc runs one unit of automation.
type HandlerFunc func(ctx context.Context, req Request) (Outcome, error)

// Handler binds a HandlerFunc to a phase and a set of target achievements.
type Handler struct {
	// Name identifies the handler in logs and reports.
	Name string `validate:"required"`

	// Phase is the automation phase the handler belongs to.
	Phase int `validate:"gte=1"`

	// Targets are the achievement ids the handler tries to earn.
	Targets []string `validate:"required,min=1,dive,required"`

	// Requires lists the capabilities the handler needs.
	Requires []string `validate:"dive,required"`

	// NeedsAccount marks handlers that address resources by username.
	NeedsAccount bool

	// Instructions are printed when the handler cannot run, so an operator
	// can earn the targets by hand.
	Instructions string

	// Run is the handler body.
	Run HandlerFunc `validate:"required"`
}

// Registry holds handlers per phase in registration order.
type Registry struct {
	catalog  *catalog.Catalog
	validate *validator.Validate
	byPhase  map[int][]Handler
	names    map[string]struct{}
}

// NewRegistry creates an empty registry for the given catalog.
func NewRegistry(c *catalog.Catalog) *Registry {
	return &Registry{
		catalog:  c,
		validate: validator.New(),
		byPhase:  make(map[int][]Handler),
		names:    make(map[string]struct{}),
	}
}

// Register adds a handler. It rejects duplicate names, unknown targets,
// non-automatable targets and targets from another phase.
func (r *Registry) Register(h Handler) error {
	if err := r.validate.Struct(h); err != nil {
		return NewValidationError("invalid handler", err).WithHandler(h.Name)
	}
	if _, dup := r.names[h.Name]; dup {
		return NewValidationError("duplicate handler name", nil).WithHandler(h.Name)
	}

	seen := make(map[string]struct{}, len(h.Targets))
	for _, id := range h.Targets {
		if _, dup := seen[id]; dup {
			return NewValidationError("duplicate target", nil).WithHandler(h.Name).WithAchievement(id)
		}
		seen[id] = struct{}{}

		a, ok := r.catalog.Lookup(id)
		if !ok {
			return NewValidationError("unknown target", nil).
				WithHandler(h.Name).WithAchievement(id).WithCode(ErrCodeUnknownAchievement)
		}
		if !a.Automatable {
			return NewValidationError("target is not automatable", nil).WithHandler(h.Name).WithAchievement(id)
		}
		if a.Phase != h.Phase {
			return NewValidationError(
				fmt.Sprintf("target belongs to phase %d, handler to phase %d", a.Phase, h.Phase), nil).
				WithHandler(h.Name).WithAchievement(id)
		}
	}

	r.names[h.Name] = struct{}{}
	r.byPhase[h.Phase] = append(r.byPhase[h.Phase], h)
	return nil
}

// RegisterAll registers handlers in order and stops at the first error.
func (r *Registry) RegisterAll(handlers ...Handler) error {
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// ForPhase returns the handlers of a phase in registration order.
func (r *Registry) ForPhase(phase int) []Handler {
	hs := r.byPhase[phase]
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

// Handlers returns every handler ordered by phase, then registration order.
func (r *Registry) Handlers() []Handler {
	phases := make([]int, 0, len(r.byPhase))
	for p := range r.byPhase {
		phases = append(phases, p)
	}
	sort.Ints(phases)

	var out []Handler
	for _, p := range phases {
		out = append(out, r.byPhase[p]...)
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.names)
}

// Catalog returns the catalog the registry validates against.
func (r *Registry) Catalog() *catalog.Catalog {
	return r.catalog
}
