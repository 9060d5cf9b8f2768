package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

// Format selects a renderer.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or yaml)", s)
	}
}

// Render writes r to w in the given format.
func Render(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatYAML:
		return RenderYAML(w, r)
	case FormatTable, "":
		return RenderTable(w, r)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// RenderJSON writes r as indented JSON.
func RenderJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderYAML writes r as YAML.
func RenderYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// tableStyles are bound to the output's renderer so colors are dropped when
// w is not a terminal.
type tableStyles struct {
	rule    lipgloss.Style
	title   lipgloss.Style
	section lipgloss.Style
	detail  lipgloss.Style
	warn    lipgloss.Style
	icons   map[engine.Status]lipgloss.Style
}

func newTableStyles(w io.Writer) tableStyles {
	re := lipgloss.NewRenderer(w)
	return tableStyles{
		rule:    re.NewStyle().Foreground(lipgloss.Color("238")),
		title:   re.NewStyle().Bold(true).Foreground(lipgloss.Color("51")),
		section: re.NewStyle().Bold(true).Foreground(lipgloss.Color("141")),
		detail:  re.NewStyle().Foreground(lipgloss.Color("245")),
		warn:    re.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		icons: map[engine.Status]lipgloss.Style{
			engine.StatusEarned:     re.NewStyle().Foreground(lipgloss.Color("42")),
			engine.StatusAttempting: re.NewStyle().Foreground(lipgloss.Color("214")),
			engine.StatusFailed:     re.NewStyle().Foreground(lipgloss.Color("196")),
			engine.StatusSkipped:    re.NewStyle().Foreground(lipgloss.Color("245")),
			engine.StatusPending:    re.NewStyle(),
		},
	}
}

// RenderTable writes the human readable summary: headline, counts by
// status, then one section per phase.
func RenderTable(w io.Writer, r Report) error {
	st := newTableStyles(w)
	rule := st.rule.Render(strings.Repeat("=", 60))

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	headline := r.Headline()
	if r.Account != "" {
		headline += " (" + r.Account + ")"
	}
	b.WriteString("  " + st.title.Render(headline) + "\n")
	b.WriteString(rule + "\n")
	for _, s := range engine.AllStatuses {
		label := strings.ToUpper(string(s[:1])) + string(s[1:]) + ":"
		fmt.Fprintf(&b, "  %-12s%d\n", label, r.Counts[s])
	}
	b.WriteString(rule + "\n\n")

	for _, g := range r.Groups {
		b.WriteString("  " + st.section.Render("--- "+g.Label+" ---") + "\n")
		for _, it := range g.Items {
			b.WriteString("    " + st.icons[it.Status].Render(it.Icon()) + " " + it.Name)
			if it.Details != "" {
				b.WriteString(" " + st.detail.Render("("+it.Details+")"))
			}
			if it.Interrupted {
				b.WriteString(" " + st.warn.Render("interrupted"))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if ids := r.Interrupted(); len(ids) > 0 {
		b.WriteString(st.warn.Render(fmt.Sprintf("%d achievement(s) interrupted mid-attempt: %s", len(ids), strings.Join(ids, ", "))) + "\n")
		b.WriteString("Use --retry-interrupted or `badges reset` to make them eligible again.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
