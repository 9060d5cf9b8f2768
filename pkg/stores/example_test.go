package stores_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/badgecollector/badgecollector/pkg/stores"
)

func ExampleJSONFileStore() {
	dir, err := os.MkdirTemp("", "progress")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	store, err := stores.NewJSONFileStore(filepath.Join(dir, "progress.json"), []string{"vampire"}, zerolog.Nop())
	if err != nil {
		fmt.Println(err)
		return
	}

	tracker := engine.NewTracker(store)
	ctx := context.Background()
	if err := tracker.SetStatus(ctx, "vampire", engine.StatusEarned, "dark theme enabled"); err != nil {
		fmt.Println(err)
		return
	}

	rec, _ := tracker.Status(ctx, "vampire")
	fmt.Println(rec.Status, rec.DetailText())
	// Output: earned dark theme enabled
}
