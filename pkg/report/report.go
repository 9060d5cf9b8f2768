// Package report builds the read-only progress summary shown by the status
// command and renders it as a table, JSON or YAML.
package report

import (
	"fmt"
	"time"

	"github.com/badgecollector/badgecollector/pkg/catalog"
	"github.com/badgecollector/badgecollector/pkg/engine"
)

// NotAutomatable labels the group of achievements without a phase.
const NotAutomatable = "Not Automatable"

// Item is one achievement line.
type Item struct {
	ID      string        `json:"id" yaml:"id"`
	Name    string        `json:"name" yaml:"name"`
	Status  engine.Status `json:"status" yaml:"status"`
	Details string        `json:"details,omitempty" yaml:"details,omitempty"`
	Updated *time.Time    `json:"updated,omitempty" yaml:"updated,omitempty"`

	// Interrupted marks a record left in attempting by a run that never
	// reported back.
	Interrupted bool `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// Icon returns the status marker printed in front of the item.
func (i Item) Icon() string {
	return Icon(i.Status)
}

// Group is the items of one phase, or the not-automatable items.
type Group struct {
	Label string `json:"label" yaml:"label"`
	Phase int    `json:"phase,omitempty" yaml:"phase,omitempty"`
	Items []Item `json:"items" yaml:"items"`
}

// Report summarizes progress over a catalog.
type Report struct {
	Account     string                `json:"account,omitempty" yaml:"account,omitempty"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	Earned      int                   `json:"earned" yaml:"earned"`
	Total       int                   `json:"total" yaml:"total"`
	Counts      map[engine.Status]int `json:"counts" yaml:"counts"`
	Groups      []Group               `json:"groups" yaml:"groups"`
}

// Headline returns the "earned/total" summary line.
func (r Report) Headline() string {
	return fmt.Sprintf("Badge Progress: %d/%d earned", r.Earned, r.Total)
}

// Interrupted returns the ids of items left in attempting.
func (r Report) Interrupted() []string {
	var ids []string
	for _, g := range r.Groups {
		for _, it := range g.Items {
			if it.Interrupted {
				ids = append(ids, it.ID)
			}
		}
	}
	return ids
}

// Build summarizes progress over the catalog. Records for ids outside the
// catalog are ignored; catalog ids without a record count as pending.
func Build(c *catalog.Catalog, progress engine.Progress, now time.Time) Report {
	r := Report{
		GeneratedAt: now.UTC(),
		Total:       c.Len(),
		Counts:      make(map[engine.Status]int, len(engine.AllStatuses)),
	}
	for _, s := range engine.AllStatuses {
		r.Counts[s] = 0
	}

	for _, phase := range c.Phases() {
		r.Groups = append(r.Groups, group(fmt.Sprintf("Phase %d", phase), phase, c.ByPhase(phase), progress, r.Counts))
	}
	if manual := c.ByPhase(0); len(manual) > 0 {
		r.Groups = append(r.Groups, group(NotAutomatable, 0, manual, progress, r.Counts))
	}

	r.Earned = r.Counts[engine.StatusEarned]
	return r
}

func group(label string, phase int, items []catalog.Achievement, progress engine.Progress, counts map[engine.Status]int) Group {
	g := Group{Label: label, Phase: phase, Items: make([]Item, 0, len(items))}
	for _, a := range items {
		rec := progress.Record(a.ID)
		counts[rec.Status]++
		g.Items = append(g.Items, Item{
			ID:          a.ID,
			Name:        a.Name,
			Status:      rec.Status,
			Details:     rec.DetailText(),
			Updated:     rec.Updated,
			Interrupted: rec.Status == engine.StatusAttempting,
		})
	}
	return g
}

// Icon returns the marker for a status.
func Icon(s engine.Status) string {
	switch s {
	case engine.StatusEarned:
		return "[x]"
	case engine.StatusAttempting:
		return "[~]"
	case engine.StatusFailed:
		return "[!]"
	case engine.StatusSkipped:
		return "[-]"
	default:
		return "[ ]"
	}
}
