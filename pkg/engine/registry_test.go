package engine

import (
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler
		wantErr bool
	}{
		{"valid", Handler{Name: "h", Phase: 1, Targets: []string{"a", "b"}, Run: earnAll}, false},
		{"missing name", Handler{Phase: 1, Targets: []string{"a"}, Run: earnAll}, true},
		{"no targets", Handler{Name: "h", Phase: 1, Run: earnAll}, true},
		{"nil body", Handler{Name: "h", Phase: 1, Targets: []string{"a"}}, true},
		{"unknown target", Handler{Name: "h", Phase: 1, Targets: []string{"zzz"}, Run: earnAll}, true},
		{"not automatable", Handler{Name: "h", Phase: 1, Targets: []string{"m"}, Run: earnAll}, true},
		{"wrong phase", Handler{Name: "h", Phase: 2, Targets: []string{"a"}, Run: earnAll}, true},
		{"duplicate target", Handler{Name: "h", Phase: 1, Targets: []string{"a", "a"}, Run: earnAll}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(testCatalog(t))
			err := reg.Register(tt.handler)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Register() error = %v, want validation class", err)
			}
		})
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry(testCatalog(t))
	h := Handler{Name: "h", Phase: 1, Targets: []string{"a"}, Run: earnAll}

	if err := reg.Register(h); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := reg.Register(h); err == nil {
		t.Error("second Register() expected error")
	}
}

func TestRegistry_HandlersOrdered(t *testing.T) {
	reg := NewRegistry(testCatalog(t))
	_ = reg.RegisterAll(
		Handler{Name: "p2", Phase: 2, Targets: []string{"c"}, Run: earnAll},
		Handler{Name: "p1", Phase: 1, Targets: []string{"a"}, Run: earnAll},
	)

	hs := reg.Handlers()
	if len(hs) != 2 || hs[0].Name != "p1" || hs[1].Name != "p2" {
		t.Errorf("Handlers() order wrong: %v", hs)
	}
}
