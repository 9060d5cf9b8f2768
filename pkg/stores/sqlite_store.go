package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps progress and run history in SQLite. It implements
// engine.ProgressStore and records history as a transition and run observer.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	ids    []string
	logger zerolog.Logger
}

// Config holds SQLite store configuration
type Config struct {
	// Path is the database file.
	Path string

	// IDs is the catalog id set used to complete loaded progress.
	IDs []string

	// Logger receives history write failures, which are never fatal.
	Logger zerolog.Logger
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path:   cfg.Path,
		ids:    append([]string(nil), cfg.IDs...),
		logger: cfg.Logger.With().Str("component", "sqlite-store").Logger(),
	}, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Load reads every progress row and completes the result with pending
// records. Rows with an unknown status are a corruption error.
func (s *SQLiteStore) Load(ctx context.Context) (engine.Progress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT achievement_id, status, updated_at, details FROM progress`)
	if err != nil {
		return nil, engine.NewCorruptionError("cannot read progress table", err)
	}
	defer rows.Close()

	p := engine.Progress{}
	for rows.Next() {
		var (
			id, status string
			updated    sql.NullString
			details    sql.NullString
		)
		if err := rows.Scan(&id, &status, &updated, &details); err != nil {
			return nil, engine.NewCorruptionError("cannot scan progress row", err)
		}

		st, err := engine.ParseStatus(status)
		if err != nil {
			return nil, engine.NewCorruptionError("invalid progress row", err).WithAchievement(id)
		}
		rec := engine.StatusRecord{Status: st}
		if updated.Valid {
			t, err := time.Parse(timeLayout, updated.String)
			if err != nil {
				return nil, engine.NewCorruptionError("invalid progress timestamp", err).WithAchievement(id)
			}
			rec.Updated = &t
		}
		if details.Valid {
			d := details.String
			rec.Details = &d
		}
		p[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, engine.NewCorruptionError("cannot read progress table", err)
	}

	p.Complete(s.ids)
	return p, nil
}

// Save replaces the progress table in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, p engine.Progress) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM progress`); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO progress (achievement_id, status, updated_at, details) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range p.IDs() {
		rec := p[id]
		var updated, details any
		if rec.Updated != nil {
			updated = rec.Updated.UTC().Format(timeLayout)
		}
		if rec.Details != nil {
			details = *rec.Details
		}
		if _, err := stmt.ExecContext(ctx, id, string(rec.Status), updated, details); err != nil {
			return fmt.Errorf("failed to save %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

// CreateRun inserts a run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, summary *engine.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, account, started_at) VALUES (?, ?, ?)`,
		summary.RunID, summary.Account, summary.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun stores the final counters and handler results of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, summary *engine.RunSummary) error {
	results, err := json.Marshal(summary.Results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET completed_at = ?, attempted = ?, succeeded = ?, interrupted = ?, results = ?
		WHERE id = ?`,
		summary.CompletedAt.UTC().Format(timeLayout),
		summary.Attempted,
		summary.Succeeded,
		summary.Interrupted,
		string(results),
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", summary.RunID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, started_at, completed_at, attempted, succeeded, interrupted, results
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		var (
			run       Run
			started   string
			completed sql.NullString
			results   string
		)
		if err := rows.Scan(&run.ID, &run.Account, &started, &completed,
			&run.Attempted, &run.Succeeded, &run.Interrupted, &results); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("invalid run start time: %w", err)
		}
		if completed.Valid {
			t, err := time.Parse(timeLayout, completed.String)
			if err != nil {
				return nil, fmt.Errorf("invalid run completion time: %w", err)
			}
			run.CompletedAt = &t
		}
		if err := json.Unmarshal([]byte(results), &run.Results); err != nil {
			return nil, fmt.Errorf("invalid run results: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// RecordTransition appends a transition row.
func (s *SQLiteStore) RecordTransition(ctx context.Context, ev engine.TransitionEvent) error {
	var runID, details any
	if ev.RunID != "" {
		runID = ev.RunID
	}
	if ev.Details != "" {
		details = ev.Details
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (run_id, achievement_id, from_status, to_status, details, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, ev.Achievement, string(ev.From), string(ev.To), details, ev.At.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// ListTransitions returns transitions, newest first. An empty achievement
// id selects all achievements.
func (s *SQLiteStore) ListTransitions(ctx context.Context, achievementID string, limit int) ([]*Transition, error) {
	query := `
		SELECT id, COALESCE(run_id, ''), achievement_id, from_status, to_status, COALESCE(details, ''), at
		FROM transitions`
	args := []any{}
	if achievementID != "" {
		query += ` WHERE achievement_id = ?`
		args = append(args, achievementID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	out := []*Transition{}
	for rows.Next() {
		var (
			tr       Transition
			from, to string
			at       string
		)
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.Achievement, &from, &to, &tr.Details, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.From = engine.Status(from)
		tr.To = engine.Status(to)
		if tr.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("invalid transition time: %w", err)
		}
		out = append(out, &tr)
	}
	return out, rows.Err()
}

// OnTransition implements engine.TransitionObserver. History failures are
// logged, never propagated.
func (s *SQLiteStore) OnTransition(ctx context.Context, ev engine.TransitionEvent) {
	if err := s.RecordTransition(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn().Err(err).Str("achievement", ev.Achievement).Msg("Failed to record transition")
	}
}

// RunStarted implements engine.RunObserver.
func (s *SQLiteStore) RunStarted(ctx context.Context, summary *engine.RunSummary) {
	if err := s.CreateRun(ctx, summary); err != nil {
		s.logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("Failed to record run start")
	}
}

// HandlerFinished implements engine.RunObserver. Results are stored with
// the run when it finishes.
func (s *SQLiteStore) HandlerFinished(context.Context, string, engine.HandlerResult) {}

// RunFinished implements engine.RunObserver.
func (s *SQLiteStore) RunFinished(ctx context.Context, summary *engine.RunSummary) {
	if err := s.CompleteRun(context.WithoutCancel(ctx), summary); err != nil {
		s.logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("Failed to record run completion")
	}
}

var (
	_ engine.ProgressStore      = (*SQLiteStore)(nil)
	_ engine.TransitionObserver = (*SQLiteStore)(nil)
	_ engine.RunObserver        = (*SQLiteStore)(nil)
)
