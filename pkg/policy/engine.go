package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"
)

const denyQuery = "data." + GatePackage + ".deny"

// Engine is the rego admission gate consulted before every handler.
type Engine struct {
	mu           sync.RWMutex
	policies     []Policy
	query        rego.PreparedEvalQuery
	capabilities Capabilities
	logger       zerolog.Logger
}

var _ engine.Gate = (*Engine)(nil)

// NewEngine creates a gate with the built-in policies compiled.
func NewEngine(ctx context.Context, caps Capabilities, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		capabilities: caps,
		logger:       logger.With().Str("component", "policy-engine").Logger(),
	}

	if err := e.compile(ctx, GetBuiltinPolicies()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// LoadPolicies adds operator policies from files or directories. On error
// the previously compiled set stays in effect.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	loaded, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.RLock()
	policies := append(append([]Policy(nil), e.policies...), loaded...)
	e.mu.RUnlock()

	if err := e.compile(ctx, policies); err != nil {
		return err
	}

	e.logger.Info().
		Int("count", len(loaded)).
		Msg("Policies loaded successfully")

	return nil
}

// compile prepares one query over every module and swaps it in.
func (e *Engine) compile(ctx context.Context, policies []Policy) error {
	opts := []func(*rego.Rego){rego.Query(denyQuery)}
	seen := make(map[string]bool, len(policies))
	for _, p := range policies {
		if seen[p.Name] {
			return fmt.Errorf("duplicate policy name: %s", p.Name)
		}
		seen[p.Name] = true
		opts = append(opts, rego.Module(p.Name+".rego", p.Rego))
	}

	query, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policies: %w", err)
	}

	e.mu.Lock()
	e.policies = policies
	e.query = query
	e.mu.Unlock()

	e.logger.Debug().Int("policies", len(policies)).Msg("Policies compiled")
	return nil
}

// Admit evaluates the deny rules for one handler invocation. Any deny
// message refuses admission; the messages become the reason.
func (e *Engine) Admit(ctx context.Context, req engine.AdmissionRequest) (engine.Admission, error) {
	reasons, err := e.Deny(ctx, e.input(req))
	if err != nil {
		return engine.Admission{}, err
	}

	if len(reasons) == 0 {
		return engine.Admission{Allowed: true}, nil
	}

	e.logger.Debug().
		Str("handler", req.Handler).
		Strs("reasons", reasons).
		Msg("Handler denied")

	return engine.Admission{Allowed: false, Reason: strings.Join(reasons, "; ")}, nil
}

// Deny returns the sorted deny messages for input.
func (e *Engine) Deny(ctx context.Context, input Input) ([]string, error) {
	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var reasons []string
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			reasons = append(reasons, fmt.Sprint(d))
		}
	}

	sort.Strings(reasons)
	return reasons, nil
}

func (e *Engine) input(req engine.AdmissionRequest) Input {
	caps := make(map[string]bool, len(e.capabilities))
	for name, ok := range e.capabilities {
		caps[name] = ok
	}
	requires := req.Requires
	if requires == nil {
		requires = []string{}
	}
	return Input{
		Account:      req.Account,
		Handler:      req.Handler,
		Phase:        req.Phase,
		Targets:      req.Targets,
		Requires:     requires,
		NeedsAccount: req.NeedsAccount,
		Capabilities: caps,
	}
}

// Capabilities returns the capability set the gate evaluates against.
func (e *Engine) Capabilities() Capabilities {
	return e.capabilities
}

// ListPolicies returns all loaded policies.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Policy, len(e.policies))
	copy(out, e.policies)
	return out
}
