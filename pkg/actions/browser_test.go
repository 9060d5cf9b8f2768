package actions

import (
	"context"
	"testing"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

func TestBrowserHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler string
		present map[string]bool
		status  engine.Status
		details string
		visited string
	}{
		{
			name:    "profile filled",
			handler: "Fill profile",
			present: map[string]bool{`textarea[name="bio"]`: true, `input[name="location"]`: true, "button:Save": true},
			status:  engine.StatusEarned,
			details: "profile filled via browser",
			visited: "https://www.kaggle.com/jane/account",
		},
		{
			name:    "profile fields missing",
			handler: "Fill profile",
			present: map[string]bool{},
			status:  engine.StatusSkipped,
			details: "profile fields not found",
			visited: "https://www.kaggle.com/jane/account",
		},
		{
			name:    "theme toggled",
			handler: "Dark theme",
			present: map[string]bool{`[data-testid="theme-toggle"], .theme-toggle`: true},
			status:  engine.StatusEarned,
			details: "dark theme via browser",
			visited: "https://www.kaggle.com",
		},
		{
			name:    "theme toggle missing",
			handler: "Dark theme",
			present: map[string]bool{},
			status:  engine.StatusSkipped,
			details: "theme toggle not found",
			visited: "https://www.kaggle.com",
		},
		{
			name:    "bookmarked",
			handler: "Bookmark",
			present: map[string]bool{`[aria-label="Bookmark"], .bookmark-button`: true},
			status:  engine.StatusEarned,
			details: "bookmarked via browser",
			visited: "https://www.kaggle.com/code/alexisbcook/titanic-tutorial",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			browser := &fakeBrowser{present: tt.present}
			env := Env{Browser: browser, Profile: Profile{Bio: "bio text", Location: "Earth"}}

			h := handlerNamed(t, BrowserHandlers(env), tt.handler)
			rec := newFakeRecorder(h.Targets...)

			out, err := h.Run(context.Background(), newRequest(rec, h.Targets...))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if out.Success != (tt.status == engine.StatusEarned) {
				t.Errorf("Success = %v for status %s", out.Success, tt.status)
			}
			for _, id := range h.Targets {
				rec.assert(t, id, tt.status, tt.details)
			}

			if len(browser.pages) != 1 {
				t.Fatalf("pages opened = %d, want 1", len(browser.pages))
			}
			page := browser.pages[0]
			if !page.closed {
				t.Error("page not closed")
			}
			if len(page.visited) != 1 || page.visited[0] != tt.visited {
				t.Errorf("visited = %v, want [%s]", page.visited, tt.visited)
			}
		})
	}
}

func TestFillProfileWritesConfiguredText(t *testing.T) {
	browser := &fakeBrowser{present: map[string]bool{`textarea[name="bio"]`: true, `input[name="location"]`: true}}
	env := Env{Browser: browser, Profile: Profile{Bio: "Kaggler", Location: "Lisbon"}}

	h := handlerNamed(t, BrowserHandlers(env), "Fill profile")
	if _, err := h.Run(context.Background(), newRequest(newFakeRecorder("stylish"), "stylish")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	filled := browser.pages[0].filled
	if filled[`textarea[name="bio"]`] != "Kaggler" || filled[`input[name="location"]`] != "Lisbon" {
		t.Errorf("filled = %v", filled)
	}
}

func TestBrowserHandlerWithoutBrowser(t *testing.T) {
	h := handlerNamed(t, BrowserHandlers(Env{}), "Dark theme")

	_, err := h.Run(context.Background(), newRequest(newFakeRecorder("vampire"), "vampire"))
	if !engine.IsUnavailable(err) {
		t.Errorf("Run() error = %v, want unavailable", err)
	}
}

func TestBrowserHandlersRequireBrowser(t *testing.T) {
	for _, h := range BrowserHandlers(Env{}) {
		if len(h.Requires) != 1 || h.Requires[0] != engine.CapabilityBrowser {
			t.Errorf("%s requires %v, want [browser]", h.Name, h.Requires)
		}
		if h.Instructions == "" {
			t.Errorf("%s has no manual instructions", h.Name)
		}
	}
}

func TestManualHandlers(t *testing.T) {
	hs := ManualHandlers()
	if len(hs) != 5 {
		t.Fatalf("ManualHandlers() = %d handlers, want 5", len(hs))
	}

	for _, h := range hs {
		t.Run(h.Name, func(t *testing.T) {
			if len(h.Requires) != 0 {
				t.Errorf("Requires = %v, want none", h.Requires)
			}
			rec := newFakeRecorder(h.Targets...)
			out, err := h.Run(context.Background(), newRequest(rec, h.Targets...))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if out.Success {
				t.Error("Success = true, want false")
			}
			for _, id := range h.Targets {
				rec.assert(t, id, engine.StatusSkipped, out.Detail)
			}
		})
	}
}
