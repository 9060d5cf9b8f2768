// Package actions holds the handlers that try to earn achievements: CLI
// driven competition handlers, browser handlers, manual-only handlers and
// operator scripts.
package actions

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

// Env carries the collaborators handlers share.
type Env struct {
	// CLI runs the platform command line client.
	CLI CommandRunner

	// Browser opens pages for browser handlers. It may be nil when browser
	// automation is disabled; the gate then denies those handlers.
	Browser Browser

	// TemplatesDir holds prepared submission files.
	TemplatesDir string

	// WorkDir is the parent of per-handler scratch directories.
	WorkDir string

	// Profile is written by the profile handler.
	Profile Profile

	// NewSlug returns a unique resource name with the given prefix.
	NewSlug func(prefix string) string
}

// Profile is the text the profile handler fills in.
type Profile struct {
	Bio      string
	Location string
}

func (e Env) slug(prefix string) string {
	if e.NewSlug != nil {
		return e.NewSlug(prefix)
	}
	return ResourceName(prefix)
}

// scratch creates a temporary directory below WorkDir.
func (e Env) scratch(suffix string) (string, func(), error) {
	dir, err := os.MkdirTemp(e.WorkDir, "badges-"+suffix+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// ResourceName returns prefix plus a short random suffix, suitable as a
// notebook or dataset slug.
func ResourceName(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// DefaultHandlers returns the built-in handlers in execution order.
func DefaultHandlers(env Env) []engine.Handler {
	var hs []engine.Handler
	hs = append(hs, CompetitionHandlers(env)...)
	hs = append(hs, BrowserHandlers(env)...)
	hs = append(hs, ManualHandlers()...)
	return hs
}

// markAll records the same status for every id.
func markAll(ctx context.Context, rec engine.Recorder, ids []string, status engine.Status, details string) error {
	for _, id := range ids {
		if err := rec.SetStatus(ctx, id, status, details); err != nil {
			return err
		}
	}
	return nil
}

// earn marks ids earned and returns a successful outcome.
func earn(ctx context.Context, req engine.Request, details string) (engine.Outcome, error) {
	if err := markAll(ctx, req.Recorder, req.Targets, engine.StatusEarned, details); err != nil {
		return engine.Outcome{}, err
	}
	return engine.Outcome{Success: true, Detail: details}, nil
}

// skip marks ids skipped and returns an unsuccessful outcome.
func skip(ctx context.Context, req engine.Request, reason string) (engine.Outcome, error) {
	if err := markAll(ctx, req.Recorder, req.Targets, engine.StatusSkipped, reason); err != nil {
		return engine.Outcome{}, err
	}
	return engine.Outcome{Success: false, Detail: reason}, nil
}

// failWith marks ids failed without raising a handler error.
func failWith(ctx context.Context, req engine.Request, reason string) (engine.Outcome, error) {
	if err := markAll(ctx, req.Recorder, req.Targets, engine.StatusFailed, reason); err != nil {
		return engine.Outcome{}, err
	}
	return engine.Outcome{Success: false, Detail: reason}, nil
}
