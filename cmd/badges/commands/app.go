package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/badgecollector/badgecollector/pkg/catalog"
	"github.com/badgecollector/badgecollector/pkg/config"
	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/badgecollector/badgecollector/pkg/stores"
	"github.com/badgecollector/badgecollector/pkg/telemetry"
)

// app holds what most commands need: configuration, the catalog, the
// progress store and telemetry.
type app struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	store     engine.ProgressStore
	history   *stores.SQLiteStore

	closers []io.Closer
}

type appOptions struct {
	// events enables the JSON lines event stream on stderr.
	events bool
}

// resolvedConfigPath returns the --config value or ./badges.cue.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultFileName
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load(resolvedConfigPath())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func telemetryConfig(cfg *config.Config, events bool) *telemetry.Config {
	tc := telemetry.DefaultConfig()

	tc.Logging.Level = cfg.Telemetry.LogLevel
	if verbose {
		tc.Logging.Level = "debug"
	}
	tc.Logging.Format = cfg.Telemetry.LogFormat

	exporter := cfg.Telemetry.TracingExporter
	tc.Tracing.Enabled = exporter != "" && exporter != "none"
	tc.Tracing.Exporter = exporter
	tc.Tracing.Endpoint = cfg.Telemetry.TracingEndpoint

	tc.Metrics.Enabled = cfg.Telemetry.MetricsTextfile != "" || cfg.Telemetry.MetricsListen != ""
	tc.Metrics.Textfile = cfg.Telemetry.MetricsTextfile
	tc.Metrics.ListenAddress = cfg.Telemetry.MetricsListen

	tc.Events.Enabled = events
	return tc
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(telemetryConfig(cfg, opts.events))
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	if opts.events {
		tel.Events.Subscribe(telemetry.JSONLinesSubscriber(os.Stderr), nil)
	}

	a := &app{
		cfg:       cfg,
		catalog:   catalog.Default(),
		telemetry: tel,
		logger:    tel.Logger.Zerolog(),
	}

	if err := a.openStores(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	ids := a.catalog.IDs()
	logger := a.logger

	switch a.cfg.Progress.Backend {
	case "sqlite":
		s, err := stores.Open(ctx, stores.Config{Path: a.cfg.Progress.Path, IDs: ids, Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to open progress database: %w", err)
		}
		a.closers = append(a.closers, s)
		a.store = s
		if a.cfg.History.Enabled && samePath(a.cfg.History.Path, a.cfg.Progress.Path) {
			a.history = s
		}
	default:
		s, err := stores.NewJSONFileStore(a.cfg.Progress.Path, ids, logger)
		if err != nil {
			return err
		}
		a.store = s
	}

	if a.cfg.History.Enabled && a.history == nil {
		h, err := stores.Open(ctx, stores.Config{Path: a.cfg.History.Path, Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		a.closers = append(a.closers, h)
		a.history = h
	}
	return nil
}

func samePath(a, b string) bool {
	x, err1 := filepath.Abs(a)
	y, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && x == y
}

// tracker returns a tracker whose transitions reach metrics, events and
// history.
func (a *app) tracker() *engine.Tracker {
	opts := []engine.TrackerOption{
		engine.WithTrackerLogger(a.logger.With().Str("component", "tracker").Logger()),
		engine.WithTransitionObserver(a.telemetry.Metrics),
		engine.WithTransitionObserver(a.telemetry.Events),
	}
	if a.history != nil {
		opts = append(opts, engine.WithTransitionObserver(a.history))
	}
	return engine.NewTracker(a.store, opts...)
}

// requireCatalogIDs rejects ids outside the catalog.
func (a *app) requireCatalogIDs(ids []string) error {
	for _, id := range ids {
		if !a.catalog.Contains(id) {
			return engine.NewValidationError("unknown achievement", nil).
				WithAchievement(id).WithCode(engine.ErrCodeUnknownAchievement)
		}
	}
	return nil
}

// Close flushes telemetry and closes the stores.
func (a *app) Close(ctx context.Context) {
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}
