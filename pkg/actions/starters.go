package actions

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed starters/*.star
var startersFS embed.FS

// StarterScripts lists the bundled script files written by "badges init".
func StarterScripts() ([]string, error) {
	entries, err := fs.ReadDir(startersFS, "starters")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// StarterScript returns the source of one bundled script.
func StarterScript(name string) ([]byte, error) {
	return startersFS.ReadFile("starters/" + name)
}

// WriteStarterScripts copies the bundled scripts into dir and returns the
// paths written. Existing files are kept unless overwrite is set.
func WriteStarterScripts(dir string, overwrite bool) ([]string, error) {
	names, err := StarterScripts()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var written []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return written, err
			}
		}
		src, err := StarterScript(name)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
