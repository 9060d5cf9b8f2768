package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, true},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetrics_ObserveRun(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	ctx := context.Background()

	start := time.Now()
	summary := &engine.RunSummary{RunID: "r", StartedAt: start, CompletedAt: start.Add(time.Second)}
	m.RunStarted(ctx, summary)
	m.HandlerFinished(ctx, "r", engine.HandlerResult{Name: "H", Phase: 2, Outcome: engine.OutcomeVacuous})
	m.HandlerFinished(ctx, "r", engine.HandlerResult{Name: "H", Phase: 2, Outcome: engine.OutcomeFailed})
	m.OnTransition(ctx, engine.TransitionEvent{To: engine.StatusEarned})
	m.RunFinished(ctx, summary)

	if got := testutil.ToFloat64(m.handlersAttempted.WithLabelValues("2", "H")); got != 2 {
		t.Errorf("handlers attempted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.handlersSucceeded.WithLabelValues("2", "H")); got != 1 {
		t.Errorf("handlers succeeded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("earned")); got != 1 {
		t.Errorf("transitions = %v, want 1", got)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badges.prom")
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "badges", Textfile: path})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.SetAchievementCounts(map[engine.Status]int{engine.StatusEarned: 3})

	if err := m.WriteTextfile(); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `badges_achievements{status="earned"} 3`) {
		t.Errorf("textfile missing gauge:\n%s", data)
	}
}

func TestMetrics_DisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.RunStarted(context.Background(), &engine.RunSummary{})
	m.SetAchievementCounts(nil)
	if err := m.WriteTextfile(); err != nil {
		t.Errorf("WriteTextfile() error = %v", err)
	}
}

func TestJSONLinesSubscriber(t *testing.T) {
	var buf bytes.Buffer
	ep := NewEventPublisher(EventsConfig{Enabled: true})
	ep.Subscribe(JSONLinesSubscriber(&buf), nil)

	ep.HandlerFinished(context.Background(), "run-1", engine.HandlerResult{
		Name: "Titanic", Phase: 2, Outcome: engine.OutcomeDenied, Detail: "missing capability: cli",
	})

	var ev Event
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ev.Type != EventTypeHandlerDenied || ev.RunID != "run-1" || ev.ID == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestTracer_Disabled(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: false}, "badges", "test")
	if err != nil {
		t.Fatalf("NewTracer() error = %v", err)
	}
	ctx, span := tr.Start(context.Background(), "run.execute")
	span.End()
	_ = ctx
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTracer_Stdout(t *testing.T) {
	var buf bytes.Buffer
	tr, err := newTracer(TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 1, ExportTimeout: time.Second}, "badges", "test", &buf)
	if err != nil {
		t.Fatalf("newTracer() error = %v", err)
	}
	_, span := tr.StartSpan(context.Background(), "handler.execute", AttrHandlerName.String("Dark theme"))
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "handler.execute") {
		t.Errorf("exported spans missing handler.execute:\n%s", buf.String())
	}
}
