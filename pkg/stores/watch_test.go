package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

func TestWatch_FiresOnAtomicSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	store, err := NewJSONFileStore(path, []string{"a"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewJSONFileStore() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	ready := make(chan error, 1)
	go func() {
		ready <- Watch(ctx, path, 10*time.Millisecond, zerolog.Nop(), func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := store.Save(ctx, engine.Progress{"a": {Status: engine.StatusEarned}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	select {
	case <-changed:
	case err := <-ready:
		t.Fatalf("Watch() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
