package catalog

import (
	"fmt"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	if got := c.Len(); got != 55 {
		t.Fatalf("Len() = %d, want 55", got)
	}

	wantPerPhase := map[int]int{0: 17, 1: 16, 2: 7, 3: 3, 4: 8, 5: 4}
	for phase, want := range wantPerPhase {
		if got := len(c.ByPhase(phase)); got != want {
			t.Errorf("ByPhase(%d) = %d achievements, want %d", phase, got, want)
		}
	}

	if got := len(c.Automatable()); got != 38 {
		t.Errorf("Automatable() = %d, want 38", got)
	}
}

func TestPhasesAscending(t *testing.T) {
	c := MustNew([]Achievement{
		{ID: "c", Name: "C", Category: CategoryAccount, Phase: 3, Automatable: true},
		{ID: "a", Name: "A", Category: CategoryAccount, Phase: 1, Automatable: true},
		{ID: "m", Name: "M", Category: CategoryAccount},
		{ID: "b", Name: "B", Category: CategoryAccount, Phase: 3, Automatable: true},
	})

	got := c.Phases()
	want := []int{1, 3}
	if len(got) != len(want) {
		t.Fatalf("Phases() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Phases() = %v, want %v", got, want)
		}
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		items []Achievement
	}{
		{
			name: "duplicate id",
			items: []Achievement{
				{ID: "x", Name: "X", Category: CategoryAccount, Phase: 1, Automatable: true},
				{ID: "x", Name: "X2", Category: CategoryAccount, Phase: 2, Automatable: true},
			},
		},
		{
			name:  "automatable without phase",
			items: []Achievement{{ID: "x", Name: "X", Category: CategoryAccount, Automatable: true}},
		},
		{
			name:  "phase without automatable",
			items: []Achievement{{ID: "x", Name: "X", Category: CategoryAccount, Phase: 2}},
		},
		{
			name:  "missing id",
			items: []Achievement{{Name: "X", Category: CategoryAccount}},
		},
		{
			name:  "unknown category",
			items: []Achievement{{ID: "x", Name: "X", Category: "sports"}},
		},
		{
			name:  "unknown tier",
			items: []Achievement{{ID: "x", Name: "X", Category: CategoryAccount, Tier: "diamond"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.items); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	a, ok := c.Lookup("vampire")
	if !ok {
		t.Fatal("Lookup(vampire) not found")
	}
	if a.Phase != 4 || !a.Automatable {
		t.Errorf("vampire = phase %d automatable %v, want phase 4 automatable", a.Phase, a.Automatable)
	}

	if _, ok := c.Lookup("does_not_exist"); ok {
		t.Error("Lookup(does_not_exist) unexpectedly found")
	}
}

func ExampleCatalog_Phases() {
	fmt.Println(Default().Phases())
	// Output: [1 2 3 4 5]
}
