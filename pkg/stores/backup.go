package stores

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// SnapshotTo writes a consistent copy of the database to dest using
// VACUUM INTO. dest is replaced only once the copy is complete.
func (s *SQLiteStore) SnapshotTo(ctx context.Context, dest string) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// VACUUM INTO refuses to overwrite, so reserve a fresh name and free it.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(tmpPath)
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, tmpPath); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to replace %s: %w", dest, err)
	}
	return nil
}

// IsSQLiteFile reports whether the file at path starts with the SQLite
// header.
func IsSQLiteFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(buf, sqliteHeader), nil
}

// ReadBackup decodes a backup written by either backend: a progress JSON
// document or a SQLite snapshot. The result is completed with pending
// records for ids. A backup that cannot be decoded is a corruption error.
func ReadBackup(ctx context.Context, path string, ids []string, logger zerolog.Logger) (engine.Progress, error) {
	isDB, err := IsSQLiteFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	if isDB {
		s, err := Open(ctx, Config{Path: path, IDs: ids, Logger: logger})
		if err != nil {
			return nil, engine.NewCorruptionError(fmt.Sprintf("cannot open backup %s", path), err)
		}
		defer s.Close()
		return s.Load(ctx)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	p, err := DecodeProgress(data)
	if err != nil {
		return nil, engine.NewCorruptionError(fmt.Sprintf("cannot parse backup %s", path), err)
	}
	p.Complete(ids)
	return p, nil
}
