package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/badgecollector/badgecollector/pkg/catalog"
	"github.com/badgecollector/badgecollector/pkg/engine"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Achievement{
		{ID: "competitor", Name: "Competitor", Category: catalog.CategoryCompetitions, Phase: 2, Automatable: true},
		{ID: "python_coder", Name: "Python Coder", Category: catalog.CategoryNotebooks, Phase: 1, Automatable: true},
		{ID: "dataset_creator", Name: "Dataset Creator", Category: catalog.CategoryDatasets, Phase: 1, Automatable: true},
		{ID: "expert", Name: "Expert", Category: catalog.CategoryCommunity},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return c
}

func record(status engine.Status, details string) engine.StatusRecord {
	rec := engine.StatusRecord{Status: status}
	if details != "" {
		rec.Details = &details
	}
	return rec
}

func testProgress() engine.Progress {
	return engine.Progress{
		"competitor":      record(engine.StatusEarned, "competition=titanic"),
		"python_coder":    record(engine.StatusEarned, ""),
		"dataset_creator": record(engine.StatusAttempting, ""),
		// not in the catalog
		"retired_badge": record(engine.StatusFailed, "old"),
	}
}

func TestBuild(t *testing.T) {
	r := Build(testCatalog(t), testProgress(), now)

	if r.Earned != 2 || r.Total != 4 {
		t.Errorf("Earned/Total = %d/%d, want 2/4", r.Earned, r.Total)
	}
	wantCounts := map[engine.Status]int{
		engine.StatusEarned:     2,
		engine.StatusAttempting: 1,
		engine.StatusFailed:     0,
		engine.StatusSkipped:    0,
		engine.StatusPending:    1,
	}
	for s, n := range wantCounts {
		if r.Counts[s] != n {
			t.Errorf("Counts[%s] = %d, want %d", s, r.Counts[s], n)
		}
	}

	var labels []string
	for _, g := range r.Groups {
		labels = append(labels, g.Label)
	}
	if got := strings.Join(labels, ","); got != "Phase 1,Phase 2,Not Automatable" {
		t.Errorf("groups = %s", got)
	}

	phase1 := r.Groups[0].Items
	if phase1[0].ID != "python_coder" || phase1[1].ID != "dataset_creator" {
		t.Errorf("phase 1 items out of catalog order: %+v", phase1)
	}
	if !phase1[1].Interrupted || phase1[0].Interrupted {
		t.Error("only the attempting record should be interrupted")
	}
	if got := r.Interrupted(); len(got) != 1 || got[0] != "dataset_creator" {
		t.Errorf("Interrupted() = %v", got)
	}
	if it := r.Groups[2].Items[0]; it.Status != engine.StatusPending || it.Icon() != "[ ]" {
		t.Errorf("missing record = %+v, want pending", it)
	}
}

func TestIcon(t *testing.T) {
	tests := map[engine.Status]string{
		engine.StatusEarned:     "[x]",
		engine.StatusAttempting: "[~]",
		engine.StatusFailed:     "[!]",
		engine.StatusSkipped:    "[-]",
		engine.StatusPending:    "[ ]",
	}
	for s, want := range tests {
		if got := Icon(s); got != want {
			t.Errorf("Icon(%s) = %q, want %q", s, got, want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	r := Build(testCatalog(t), testProgress(), now)
	r.Account = "jane"

	var buf bytes.Buffer
	if err := RenderTable(&buf, r); err != nil {
		t.Fatalf("RenderTable() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Badge Progress: 2/4 earned (jane)",
		"--- Phase 1 ---",
		"--- Not Automatable ---",
		"Python Coder",
		"(competition=titanic)",
		"[~]",
		"interrupted",
		"dataset_creator",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "retired_badge") {
		t.Error("table lists a record outside the catalog")
	}
	if strings.Index(out, "Phase 1") > strings.Index(out, "Phase 2") {
		t.Error("phases not in ascending order")
	}
}

func TestRenderJSONAndYAML(t *testing.T) {
	r := Build(testCatalog(t), testProgress(), now)

	var buf bytes.Buffer
	if err := Render(&buf, r, FormatJSON); err != nil {
		t.Fatalf("Render(json) error = %v", err)
	}
	var fromJSON Report
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if fromJSON.Earned != 2 || len(fromJSON.Groups) != 3 {
		t.Errorf("decoded JSON = %+v", fromJSON)
	}

	buf.Reset()
	if err := Render(&buf, r, FormatYAML); err != nil {
		t.Fatalf("Render(yaml) error = %v", err)
	}
	var fromYAML map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if fromYAML["total"] != 4 {
		t.Errorf("yaml total = %v, want 4", fromYAML["total"])
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
