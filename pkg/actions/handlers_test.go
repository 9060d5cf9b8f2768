package actions

import (
	"errors"
	"testing"

	"github.com/badgecollector/badgecollector/pkg/catalog"
	"github.com/badgecollector/badgecollector/pkg/engine"
)

func TestDefaultHandlersRegister(t *testing.T) {
	reg := engine.NewRegistry(catalog.Default())
	if err := reg.RegisterAll(DefaultHandlers(Env{})...); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	if got := len(reg.ForPhase(2)); got != 5 {
		t.Errorf("phase 2 handlers = %d, want 5", got)
	}
	if got := len(reg.ForPhase(4)); got != 8 {
		t.Errorf("phase 4 handlers = %d, want 8", got)
	}

	// browser handlers run before the manual ones
	phase4 := reg.ForPhase(4)
	if phase4[0].Name != "Fill profile" {
		t.Errorf("first phase 4 handler = %q, want Fill profile", phase4[0].Name)
	}
	for _, h := range phase4[3:] {
		if len(h.Requires) != 0 {
			t.Errorf("%s after browser handlers requires %v", h.Name, h.Requires)
		}
	}
}

func TestDetectCapabilities(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })

	installed := map[string]bool{"kaggle": true, "chromium": true}
	lookPath = func(name string) (string, error) {
		if installed[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	tests := []struct {
		name        string
		cli         string
		browser     bool
		browserBin  string
		wantCLI     bool
		wantBrowser bool
	}{
		{"cli only", "kaggle", false, "chromium", true, false},
		{"both", "kaggle", true, "chromium", true, true},
		{"missing cli", "kaggle-missing", true, "chromium", false, true},
		{"missing browser", "kaggle", true, "firefox", true, false},
		{"no cli configured", "", false, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := DetectCapabilities(tt.cli, tt.browser, tt.browserBin)
			if caps.Has(engine.CapabilityCLI) != tt.wantCLI {
				t.Errorf("cli = %v, want %v", caps.Has(engine.CapabilityCLI), tt.wantCLI)
			}
			if caps.Has(engine.CapabilityBrowser) != tt.wantBrowser {
				t.Errorf("browser = %v, want %v", caps.Has(engine.CapabilityBrowser), tt.wantBrowser)
			}
		})
	}
}

func TestNotebookHandlersNeedAccount(t *testing.T) {
	hs := CompetitionHandlers(Env{})
	for _, name := range []string{"Code submission notebook", "Competition modeler notebook"} {
		if !handlerNamed(t, hs, name).NeedsAccount {
			t.Errorf("%s does not declare NeedsAccount", name)
		}
	}
	if handlerNamed(t, hs, "Titanic submission").NeedsAccount {
		t.Error("Titanic submission declares NeedsAccount")
	}
}
