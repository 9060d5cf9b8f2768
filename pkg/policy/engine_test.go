package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/badgecollector/badgecollector/pkg/engine"
	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, caps Capabilities) *Engine {
	t.Helper()
	eng, err := NewEngine(context.Background(), caps, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return eng
}

func TestNewEngineLoadsBuiltins(t *testing.T) {
	eng := newTestEngine(t, Capabilities{"cli": true})

	names := map[string]bool{}
	for _, p := range eng.ListPolicies() {
		names[p.Name] = true
		if !p.Builtin {
			t.Errorf("policy %s not marked builtin", p.Name)
		}
	}
	for _, want := range []string{"capabilities", "account"} {
		if !names[want] {
			t.Errorf("built-in policy %q missing", want)
		}
	}
}

func TestAdmitCapabilities(t *testing.T) {
	tests := []struct {
		name     string
		caps     Capabilities
		req      engine.AdmissionRequest
		allowed  bool
		contains string
	}{
		{
			name:    "no requirements",
			caps:    Capabilities{},
			req:     engine.AdmissionRequest{Account: "jane", Handler: "streak"},
			allowed: true,
		},
		{
			name:    "cli present",
			caps:    Capabilities{"cli": true},
			req:     engine.AdmissionRequest{Account: "jane", Handler: "dataset", Requires: []string{"cli"}},
			allowed: true,
		},
		{
			name:     "cli missing",
			caps:     Capabilities{"browser": true},
			req:      engine.AdmissionRequest{Account: "jane", Handler: "dataset", Requires: []string{"cli"}},
			contains: `capability "cli" unavailable`,
		},
		{
			name:     "browser explicitly false",
			caps:     Capabilities{"cli": true, "browser": false},
			req:      engine.AdmissionRequest{Account: "jane", Handler: "theme", Requires: []string{"browser"}},
			contains: `capability "browser" unavailable`,
		},
		{
			name:     "browser without account",
			caps:     Capabilities{"browser": true},
			req:      engine.AdmissionRequest{Handler: "profile", Requires: []string{"browser"}},
			contains: "no account configured",
		},
		{
			name:     "notebook without account",
			caps:     Capabilities{"cli": true},
			req:      engine.AdmissionRequest{Handler: "notebook", Requires: []string{"cli"}, NeedsAccount: true},
			contains: "no account configured",
		},
		{
			name:    "notebook with account",
			caps:    Capabilities{"cli": true},
			req:     engine.AdmissionRequest{Account: "jane", Handler: "notebook", Requires: []string{"cli"}, NeedsAccount: true},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t, tt.caps)

			adm, err := eng.Admit(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Admit() error = %v", err)
			}
			if adm.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v (reason %q)", adm.Allowed, tt.allowed, adm.Reason)
			}
			if tt.contains != "" && !strings.Contains(adm.Reason, tt.contains) {
				t.Errorf("Reason = %q, want it to contain %q", adm.Reason, tt.contains)
			}
		})
	}
}

func TestAdmitJoinsReasonsSorted(t *testing.T) {
	eng := newTestEngine(t, Capabilities{})

	adm, err := eng.Admit(context.Background(), engine.AdmissionRequest{
		Handler:  "both",
		Requires: []string{"cli", "browser"},
	})
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	want := `capability "browser" unavailable; capability "cli" unavailable; no account configured`
	if adm.Reason != want {
		t.Errorf("Reason = %q, want %q", adm.Reason, want)
	}
}

func TestLoadPoliciesAddsOperatorRules(t *testing.T) {
	dir := t.TempDir()
	src := `# Keep phase 5 off on weekdays.
package badges.gate

deny contains "streak handlers disabled" if {
	input.phase == 5
}
`
	if err := os.WriteFile(filepath.Join(dir, "no-streaks.rego"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine(t, Capabilities{"cli": true})
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}

	adm, err := eng.Admit(context.Background(), engine.AdmissionRequest{Account: "jane", Handler: "streak", Phase: 5})
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if adm.Allowed || adm.Reason != "streak handlers disabled" {
		t.Errorf("Admit() = %+v, want denial by operator rule", adm)
	}

	adm, err = eng.Admit(context.Background(), engine.AdmissionRequest{Account: "jane", Handler: "api", Phase: 1})
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if !adm.Allowed {
		t.Errorf("phase 1 denied: %q", adm.Reason)
	}

	var found *Policy
	for _, p := range eng.ListPolicies() {
		if p.Name == "no-streaks" {
			p := p
			found = &p
		}
	}
	if found == nil {
		t.Fatal("operator policy not listed")
	}
	if found.Description != "Keep phase 5 off on weekdays." {
		t.Errorf("Description = %q", found.Description)
	}
}

func TestLoadPoliciesRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", "package badges.gate\n\ndeny contains msg if {\n"},
		{"wrong package", "package other\n\ndeny contains \"x\" if { true }\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.rego")
			if err := os.WriteFile(path, []byte(tt.src), 0o644); err != nil {
				t.Fatal(err)
			}

			eng := newTestEngine(t, Capabilities{"cli": true})
			if err := eng.LoadPolicies(context.Background(), []string{path}); err == nil {
				t.Fatal("LoadPolicies() error = nil, want error")
			}
			if got := len(eng.ListPolicies()); got != len(GetBuiltinPolicies()) {
				t.Errorf("policies after failed load = %d, want built-ins only", got)
			}
		})
	}
}

func TestLoadPoliciesMissingPath(t *testing.T) {
	eng := newTestEngine(t, Capabilities{})
	err := eng.LoadPolicies(context.Background(), []string{filepath.Join(t.TempDir(), "missing.rego")})
	if err == nil {
		t.Fatal("LoadPolicies() error = nil, want error")
	}
}

func TestCapabilitiesNames(t *testing.T) {
	caps := Capabilities{"cli": true, "browser": false, "gpu": true}
	got := strings.Join(caps.Names(), ",")
	if got != "cli,gpu" {
		t.Errorf("Names() = %q, want cli,gpu", got)
	}
}
