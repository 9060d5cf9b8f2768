package actions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/badgecollector/badgecollector/pkg/catalog"
	"github.com/badgecollector/badgecollector/pkg/config"
	"github.com/badgecollector/badgecollector/pkg/engine"
)

// starterRun registers the scripts of the default config against the
// default catalog and runs phase 1.
func starterRun(t *testing.T, runner CommandRunner) (*engine.RunSummary, engine.Progress) {
	t.Helper()

	dir := t.TempDir()
	if _, err := WriteStarterScripts(filepath.Join(dir, "scripts"), false); err != nil {
		t.Fatalf("WriteStarterScripts() error = %v", err)
	}
	cfgPath := filepath.Join(dir, config.DefaultFileName)
	if err := os.WriteFile(cfgPath, []byte(config.DefaultFile), 0o644); err != nil {
		t.Fatal(err)
	}
	loader, err := config.NewLoader()
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	hs, err := ScriptHandlers(cfg.Scripts, ScriptOptions{CLI: runner, WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("ScriptHandlers() error = %v", err)
	}
	cat := catalog.Default()
	reg := engine.NewRegistry(cat)
	if err := reg.RegisterAll(hs...); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	store := &memProgress{ids: cat.IDs(), data: engine.Progress{}}
	summary, err := engine.NewOrchestrator(reg, engine.NewTracker(store)).
		Run(context.Background(), engine.RunOptions{Account: "jane", Phases: []int{1}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return summary, store.data
}

func TestStarterScriptsEarnPhaseOne(t *testing.T) {
	runner := &fakeRunner{}
	summary, progress := starterRun(t, runner)

	if summary.Attempted != 3 || summary.Succeeded != 3 {
		t.Errorf("attempted=%d succeeded=%d, want 3/3", summary.Attempted, summary.Succeeded)
	}
	for _, r := range summary.Results {
		for _, id := range r.Eligible {
			if got := progress.StatusOf(id); got != engine.StatusEarned {
				t.Errorf("%s = %s, want earned", id, got)
			}
		}
	}
	if got := progress.Record("python_coder").DetailText(); !strings.HasPrefix(got, "kernel=badges-python-") {
		t.Errorf("python_coder details = %q", got)
	}

	for _, call := range [][]string{
		{"kernels", "push", "-p"},
		{"datasets", "create", "-p"},
		{"models", "create", "-p"},
		{"models", "instances", "create", "-p"},
	} {
		if !runner.called(call...) {
			t.Errorf("no call %v in %v", call, runner.calls)
		}
	}
}

func TestStarterScriptsRecordFailures(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) (*CommandResult, error) {
		return &CommandResult{Args: args, ExitCode: 1, Stderr: "403 Forbidden"}, nil
	}}
	summary, progress := starterRun(t, runner)

	if summary.Succeeded != 0 {
		t.Errorf("succeeded = %d, want 0", summary.Succeeded)
	}
	for _, id := range []string{"python_coder", "r_coder", "dataset_creator", "model_creator", "model_variation_creator"} {
		rec := progress.Record(id)
		if rec.Status != engine.StatusFailed || rec.DetailText() != "403 Forbidden" {
			t.Errorf("%s = %s %q, want failed with stderr", id, rec.Status, rec.DetailText())
		}
	}
	// the variation is not attempted once the model failed
	if runner.called("models", "instances", "create") {
		t.Error("variation attempted after models create failed")
	}
}

func TestWriteStarterScriptsKeepsEdits(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteStarterScripts(dir, false)
	if err != nil {
		t.Fatalf("WriteStarterScripts() error = %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("written = %v, want 3 scripts", written)
	}

	edited := filepath.Join(dir, "datasets.star")
	if err := os.WriteFile(edited, []byte("def run(account, targets):\n    return True\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	written, err = WriteStarterScripts(dir, false)
	if err != nil {
		t.Fatalf("WriteStarterScripts() error = %v", err)
	}
	if len(written) != 0 {
		t.Errorf("second write = %v, want none", written)
	}

	if _, err := WriteStarterScripts(dir, true); err != nil {
		t.Fatalf("WriteStarterScripts(overwrite) error = %v", err)
	}
	got, _ := os.ReadFile(edited)
	want, _ := StarterScript("datasets.star")
	if string(got) != string(want) {
		t.Error("overwrite did not restore the starter script")
	}
}
