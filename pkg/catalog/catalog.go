// Package catalog holds the static, read-only set of achievements a campaign
// can work towards. A Catalog is immutable once built and safe for concurrent
// reads.
package catalog

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Category groups achievements by the area of the platform they relate to.
type Category string

const (
	CategoryNotebooks    Category = "notebooks"
	CategoryDatasets     Category = "datasets"
	CategoryModels       Category = "models"
	CategoryCompetitions Category = "competitions"
	CategoryCommunity    Category = "community"
	CategoryAccount      Category = "account"
)

// Achievement is a single trackable goal.
type Achievement struct {
	// ID is the unique, stable identifier used as the progress key.
	ID string `json:"id" validate:"required"`

	// Name is the display name.
	Name string `json:"name" validate:"required"`

	// Category is the platform area the achievement belongs to.
	Category Category `json:"category" validate:"required,oneof=notebooks datasets models competitions community account"`

	// Phase is the automation phase able to earn the achievement.
	// Zero means the achievement has no phase and cannot be automated.
	Phase int `json:"phase,omitempty" validate:"gte=0"`

	// Description explains how the achievement is earned.
	Description string `json:"description"`

	// Automatable reports whether any handler may target the achievement.
	Automatable bool `json:"automatable"`

	// Tier is the optional medal tier (bronze, silver, gold, platinum).
	Tier string `json:"tier,omitempty" validate:"omitempty,oneof=bronze silver gold platinum"`
}

// HasPhase reports whether the achievement belongs to an automation phase.
func (a Achievement) HasPhase() bool {
	return a.Phase > 0
}

// Catalog is an ordered, immutable set of achievements.
type Catalog struct {
	items []Achievement
	index map[string]int
}

// New builds a catalog from the given achievements, preserving their order.
// It rejects duplicate ids, invalid fields and achievements whose
// automatable flag disagrees with their phase.
func New(items []Achievement) (*Catalog, error) {
	validate := validator.New()

	c := &Catalog{
		items: make([]Achievement, 0, len(items)),
		index: make(map[string]int, len(items)),
	}

	for _, a := range items {
		if err := validate.Struct(a); err != nil {
			return nil, fmt.Errorf("achievement %q: %w", a.ID, err)
		}
		if _, dup := c.index[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id: %s", a.ID)
		}
		if a.Automatable != a.HasPhase() {
			return nil, fmt.Errorf("achievement %s: automatable=%v but phase=%d", a.ID, a.Automatable, a.Phase)
		}
		c.index[a.ID] = len(c.items)
		c.items = append(c.items, a)
	}

	return c, nil
}

// MustNew is like New but panics on error. It is meant for static tables.
func MustNew(items []Achievement) *Catalog {
	c, err := New(items)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of achievements.
func (c *Catalog) Len() int {
	return len(c.items)
}

// All returns a copy of every achievement in catalog order.
func (c *Catalog) All() []Achievement {
	out := make([]Achievement, len(c.items))
	copy(out, c.items)
	return out
}

// IDs returns every achievement id in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.items))
	for i, a := range c.items {
		ids[i] = a.ID
	}
	return ids
}

// Lookup returns the achievement with the given id.
func (c *Catalog) Lookup(id string) (Achievement, bool) {
	i, ok := c.index[id]
	if !ok {
		return Achievement{}, false
	}
	return c.items[i], true
}

// Contains reports whether id is part of the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// ByPhase returns the achievements of one phase in catalog order.
// Phase 0 selects the achievements that are not automatable.
func (c *Catalog) ByPhase(phase int) []Achievement {
	var out []Achievement
	for _, a := range c.items {
		if a.Phase == phase {
			out = append(out, a)
		}
	}
	return out
}

// Phases returns the distinct automation phases with at least one member,
// in ascending order.
func (c *Catalog) Phases() []int {
	seen := make(map[int]struct{})
	for _, a := range c.items {
		if a.HasPhase() {
			seen[a.Phase] = struct{}{}
		}
	}
	phases := make([]int, 0, len(seen))
	for p := range seen {
		phases = append(phases, p)
	}
	sort.Ints(phases)
	return phases
}

// Automatable returns the achievements a handler may target.
func (c *Catalog) Automatable() []Achievement {
	var out []Achievement
	for _, a := range c.items {
		if a.Automatable {
			out = append(out, a)
		}
	}
	return out
}
