package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/badgecollector/badgecollector/pkg/catalog"
)

// memStore is an in-memory ProgressStore.
type memStore struct {
	mu      sync.Mutex
	ids     []string
	data    Progress
	saves   int
	loadErr error
	saveErr error
}

func newMemStore(ids []string, initial Progress) *memStore {
	if initial == nil {
		initial = Progress{}
	}
	return &memStore{ids: ids, data: initial.Clone()}
}

func (m *memStore) Load(ctx context.Context) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	p := m.data.Clone()
	p.Complete(m.ids)
	return p, nil
}

func (m *memStore) Save(ctx context.Context, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = p.Clone()
	return nil
}

func (m *memStore) status(id string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.StatusOf(id)
}

func (m *memStore) details(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Record(id).DetailText()
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	c, err := catalog.New([]catalog.Achievement{
		{ID: "a", Name: "A", Category: catalog.CategoryNotebooks, Phase: 1, Automatable: true},
		{ID: "b", Name: "B", Category: catalog.CategoryNotebooks, Phase: 1, Automatable: true},
		{ID: "c", Name: "C", Category: catalog.CategoryDatasets, Phase: 2, Automatable: true},
		{ID: "m", Name: "M", Category: catalog.CategoryCommunity},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return c
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return now }
}

// earnAll is a handler body that records every target as earned.
func earnAll(ctx context.Context, req Request) (Outcome, error) {
	for _, id := range req.Targets {
		if err := req.Recorder.SetStatus(ctx, id, StatusEarned, ""); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Success: true}, nil
}

type recordingGate struct {
	allow    bool
	reason   string
	requests []AdmissionRequest
}

func (g *recordingGate) Admit(ctx context.Context, req AdmissionRequest) (Admission, error) {
	g.requests = append(g.requests, req)
	return Admission{Allowed: g.allow, Reason: g.reason}, nil
}

type recordingObserver struct {
	started  int
	finished int
	results  []HandlerResult
}

func (r *recordingObserver) RunStarted(ctx context.Context, s *RunSummary) { r.started++ }

func (r *recordingObserver) HandlerFinished(ctx context.Context, runID string, res HandlerResult) {
	r.results = append(r.results, res)
}

func (r *recordingObserver) RunFinished(ctx context.Context, s *RunSummary) { r.finished++ }
