package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

// Metrics provides Prometheus metrics for campaign runs. All recording
// methods are no-ops on a disabled instance.
type Metrics struct {
	config MetricsConfig

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	handlersAttempted *prometheus.CounterVec
	handlersSucceeded *prometheus.CounterVec
	handlerDuration   *prometheus.HistogramVec

	transitions  *prometheus.CounterVec
	achievements *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of runs completed",
		}, []string{"interrupted"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		handlersAttempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handlers_attempted_total",
			Help:      "Handlers visited, including vacuous successes",
		}, []string{"phase", "handler"}),
		handlersSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handlers_succeeded_total",
			Help:      "Handlers that succeeded",
		}, []string{"phase", "handler"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler visits in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Persisted status transitions by target status",
		}, []string{"to"}),
		achievements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "achievements",
			Help:      "Catalog achievements by current status",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.handlersAttempted,
		m.handlersSucceeded,
		m.handlerDuration,
		m.transitions,
		m.achievements,
	)

	return m, nil
}

// Enabled reports whether metrics are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// RunStarted implements engine.RunObserver.
func (m *Metrics) RunStarted(_ context.Context, _ *engine.RunSummary) {
	if !m.Enabled() {
		return
	}
	m.runsStarted.Inc()
}

// HandlerFinished implements engine.RunObserver.
func (m *Metrics) HandlerFinished(_ context.Context, _ string, r engine.HandlerResult) {
	if !m.Enabled() {
		return
	}
	phase := fmt.Sprintf("%d", r.Phase)
	m.handlersAttempted.WithLabelValues(phase, r.Name).Inc()
	if r.Succeeded() {
		m.handlersSucceeded.WithLabelValues(phase, r.Name).Inc()
	}
	m.handlerDuration.WithLabelValues(phase, string(r.Outcome)).Observe(r.Duration.Seconds())
}

// RunFinished implements engine.RunObserver.
func (m *Metrics) RunFinished(_ context.Context, s *engine.RunSummary) {
	if !m.Enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(fmt.Sprintf("%t", s.Interrupted)).Inc()
	m.runDuration.Observe(s.CompletedAt.Sub(s.StartedAt).Seconds())
}

// OnTransition implements engine.TransitionObserver.
func (m *Metrics) OnTransition(_ context.Context, ev engine.TransitionEvent) {
	if !m.Enabled() {
		return
	}
	m.transitions.WithLabelValues(string(ev.To)).Inc()
}

// SetAchievementCounts sets the per-status gauge.
func (m *Metrics) SetAchievementCounts(counts map[engine.Status]int) {
	if !m.Enabled() {
		return
	}
	for _, st := range engine.AllStatuses {
		m.achievements.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}

// Registry returns the underlying registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry to the configured textfile.
func (m *Metrics) WriteTextfile() error {
	if !m.Enabled() || m.config.Textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.Textfile, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics until ctx is cancelled.
func (m *Metrics) StartMetricsServer(ctx context.Context) error {
	if !m.Enabled() || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

var (
	_ engine.RunObserver        = (*Metrics)(nil)
	_ engine.TransitionObserver = (*Metrics)(nil)
)
