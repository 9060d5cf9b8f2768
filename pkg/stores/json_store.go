package stores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

// JSONFileStore keeps progress in a single indented JSON document keyed by
// achievement id. It assumes a single writer.
type JSONFileStore struct {
	path   string
	ids    []string
	logger zerolog.Logger
}

// NewJSONFileStore creates a store for path. ids is the catalog id set used
// to complete loaded progress.
func NewJSONFileStore(path string, ids []string, logger zerolog.Logger) (*JSONFileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("progress path is required")
	}
	return &JSONFileStore{
		path:   path,
		ids:    append([]string(nil), ids...),
		logger: logger.With().Str("component", "json-store").Logger(),
	}, nil
}

// Path returns the file path.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file yields all-pending progress; an
// unreadable one is a corruption error. Load never writes.
func (s *JSONFileStore) Load(_ context.Context) (engine.Progress, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		p := engine.Progress{}
		p.Complete(s.ids)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	p, err := DecodeProgress(data)
	if err != nil {
		return nil, engine.NewCorruptionError(fmt.Sprintf("cannot parse progress file %s", s.path), err)
	}

	if added := p.Complete(s.ids); len(added) > 0 {
		s.logger.Debug().Int("added", len(added)).Msg("Completed progress with pending records")
	}
	return p, nil
}

// Save atomically replaces the file: the new content is written to a
// temporary file in the same directory, synced and renamed over the target.
func (s *JSONFileStore) Save(_ context.Context, p engine.Progress) error {
	data, err := EncodeProgress(p)
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.path, data, 0o644)
}

// EncodeProgress renders progress as indented, newline-terminated JSON with
// keys in sorted order.
func EncodeProgress(p engine.Progress) ([]byte, error) {
	if p == nil {
		p = engine.Progress{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode progress: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeProgress parses a progress document and validates every status.
func DecodeProgress(data []byte) (engine.Progress, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	var p engine.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("document is null")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteFileAtomic writes data to path through a synced temporary file and a
// rename, then syncs the directory so the rename itself is durable.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

var _ engine.ProgressStore = (*JSONFileStore)(nil)
