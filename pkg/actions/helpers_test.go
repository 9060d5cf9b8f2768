package actions

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

// fakeRunner answers CLI calls from a response function and records them.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(args []string) (*CommandResult, error)
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (*CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()

	if f.respond == nil {
		return &CommandResult{Args: args}, nil
	}
	return f.respond(args)
}

func (f *fakeRunner) called(prefix ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if len(c) >= len(prefix) && strings.Join(c[:len(prefix)], " ") == strings.Join(prefix, " ") {
			return true
		}
	}
	return false
}

// fakeRecorder keeps statuses in memory.
type fakeRecorder struct {
	records map[string]engine.StatusRecord
}

func newFakeRecorder(attempting ...string) *fakeRecorder {
	r := &fakeRecorder{records: map[string]engine.StatusRecord{}}
	for _, id := range attempting {
		r.records[id] = engine.StatusRecord{Status: engine.StatusAttempting}
	}
	return r
}

func (r *fakeRecorder) SetStatus(_ context.Context, id string, status engine.Status, details string) error {
	rec := engine.StatusRecord{Status: status}
	if details != "" {
		rec.Details = &details
	}
	r.records[id] = rec
	return nil
}

func (r *fakeRecorder) ShouldAttempt(_ context.Context, id string) (bool, error) {
	return engine.ShouldAttempt(r.record(id)), nil
}

func (r *fakeRecorder) Status(_ context.Context, id string) (engine.StatusRecord, error) {
	return r.record(id), nil
}

func (r *fakeRecorder) record(id string) engine.StatusRecord {
	if rec, ok := r.records[id]; ok {
		return rec
	}
	return engine.PendingRecord()
}

func (r *fakeRecorder) assert(t *testing.T, id string, status engine.Status, details string) {
	t.Helper()
	rec := r.record(id)
	if rec.Status != status {
		t.Errorf("%s status = %s, want %s", id, rec.Status, status)
	}
	if details != "" && rec.DetailText() != details {
		t.Errorf("%s details = %q, want %q", id, rec.DetailText(), details)
	}
}

func newRequest(rec engine.Recorder, targets ...string) engine.Request {
	return engine.Request{
		Account:  "jane",
		Targets:  targets,
		Recorder: rec,
		Logger:   zerolog.Nop(),
	}
}

// handlerNamed returns the handler with name from hs.
func handlerNamed(t *testing.T, hs []engine.Handler, name string) engine.Handler {
	t.Helper()
	for _, h := range hs {
		if h.Name == name {
			return h
		}
	}
	t.Fatalf("handler %q not found", name)
	return engine.Handler{}
}

// fakeBrowser serves fakePages with a fixed set of present selectors.
type fakeBrowser struct {
	present map[string]bool
	pages   []*fakePage
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	p := &fakePage{present: b.present, filled: map[string]string{}}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) Close() error { return nil }

type fakePage struct {
	present map[string]bool
	visited []string
	clicked []string
	filled  map[string]string
	closed  bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.visited = append(p.visited, url)
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) (bool, error) {
	if !p.present[selector] {
		return false, nil
	}
	p.clicked = append(p.clicked, selector)
	return true, nil
}

func (p *fakePage) ClickText(ctx context.Context, selector, text string) (bool, error) {
	return p.Click(ctx, selector+":"+text)
}

func (p *fakePage) Fill(_ context.Context, selector, text string) (bool, error) {
	if !p.present[selector] {
		return false, nil
	}
	p.filled[selector] = text
	return true, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}
