package actions

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

const titanic = "titanic"

// CompetitionHandlers returns the phase 2 handlers in execution order.
func CompetitionHandlers(env Env) []engine.Handler {
	cli := []string{engine.CapabilityCLI}
	return []engine.Handler{
		{
			Name:     "Titanic submission",
			Phase:    2,
			Targets:  []string{"competitor", "getting_started_competitor"},
			Requires: cli,
			Run:      env.submitTitanic,
		},
		{
			Name:     "Playground submission",
			Phase:    2,
			Targets:  []string{"playground_competitor"},
			Requires: cli,
			Run: env.categorySubmission("playground",
				[]string{"sample_submission*.csv", "sample*.csv", "submission*.csv"},
				"no active playground competition"),
		},
		{
			// The CLI has no community category; research is the closest.
			Name:     "Community submission",
			Phase:    2,
			Targets:  []string{"community_competitor"},
			Requires: cli,
			Run: env.categorySubmission("research",
				[]string{"sample_submission*.csv", "sample*.csv"},
				"no active research competition"),
		},
		{
			Name:         "Code submission notebook",
			Phase:        2,
			Targets:      []string{"code_submitter", "notebook_modeler"},
			Requires:     cli,
			NeedsAccount: true,
			Run:          env.pushNotebook("titanic-submit", submissionSource, []string{"badge-collector", "titanic", "competition"}),
		},
		{
			Name:         "Competition modeler notebook",
			Phase:        2,
			Targets:      []string{"competition_modeler"},
			Requires:     cli,
			NeedsAccount: true,
			Run:          env.pushNotebook("comp-modeler", modelerSource, []string{"badge-collector", "competition", "model"}),
		},
	}
}

func (e Env) submitTitanic(ctx context.Context, req engine.Request) (engine.Outcome, error) {
	file := filepath.Join(e.TemplatesDir, "submission_titanic.csv")
	if _, err := os.Stat(file); err != nil {
		req.Logger.Error().Str("path", file).Msg("Submission template not found")
		return failWith(ctx, req, "template missing")
	}

	if _, err := RunChecked(ctx, e.CLI,
		"competitions", "submit",
		"-c", titanic,
		"-f", file,
		"-m", "Badge Collector automated submission",
	); err != nil {
		return engine.Outcome{}, err
	}

	req.Logger.Info().Str("competition", titanic).Msg("Submitted")
	return earn(ctx, req, "competition="+titanic)
}

// categorySubmission finds an active competition in category, downloads its
// data and submits the first file matching patterns.
func (e Env) categorySubmission(category string, patterns []string, noneReason string) engine.HandlerFunc {
	return func(ctx context.Context, req engine.Request) (engine.Outcome, error) {
		comp, err := e.findCompetition(ctx, category)
		if err != nil {
			return engine.Outcome{}, err
		}
		if comp == "" {
			req.Logger.Warn().Str("category", category).Msg("No active competition found")
			return skip(ctx, req, noneReason)
		}
		req.Logger.Info().Str("competition", comp).Msg("Found competition")

		dir, cleanup, err := e.scratch(category)
		if err != nil {
			return engine.Outcome{}, err
		}
		defer cleanup()

		// A failed download surfaces as a missing sample file below.
		if _, err := e.CLI.Run(ctx, "competitions", "download", comp, "--path", dir); err != nil {
			return engine.Outcome{}, err
		}
		if err := extractArchives(dir); err != nil {
			return engine.Outcome{}, err
		}

		file, err := firstMatch(dir, patterns)
		if err != nil {
			return engine.Outcome{}, err
		}
		if file == "" {
			return skip(ctx, req, "no sample_submission for "+comp)
		}

		res, err := e.CLI.Run(ctx,
			"competitions", "submit",
			"-c", comp,
			"-f", file,
			"-m", "Badge Collector "+category+" submission",
		)
		if err != nil {
			return engine.Outcome{}, err
		}
		if !res.OK() {
			req.Logger.Warn().
				Str("competition", comp).
				Str("stderr", truncate(res.Stderr, 200)).
				Msg("Submission rejected")
			return failWith(ctx, req, "submit failed for "+comp)
		}

		return earn(ctx, req, "competition="+comp)
	}
}

// findCompetition returns the first competition listed for category, or ""
// when the listing fails or is empty.
func (e Env) findCompetition(ctx context.Context, category string) (string, error) {
	res, err := e.CLI.Run(ctx, "competitions", "list", "--category", category, "--sort-by", "latestDeadline")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", nil
	}
	return ParseCompetitionList(res.Stdout), nil
}

// ParseCompetitionList extracts the first competition slug from the tabular
// output of "competitions list". The first column holds either a slug or a
// full URL ending in /competitions/<slug>.
func ParseCompetitionList(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "ref") || strings.HasPrefix(line, "---") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ref := fields[0]
		if i := strings.Index(ref, "/competitions/"); i >= 0 {
			return strings.Trim(ref[i+len("/competitions/"):], "/")
		}
		if !strings.HasPrefix(ref, "-") {
			return ref
		}
	}
	return ""
}

// firstMatch returns the first file in dir matching any pattern, trying the
// patterns in order.
func firstMatch(dir string, patterns []string) (string, error) {
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return "", fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", nil
}

// extractArchives unpacks every *.zip directly inside dir into dir.
func extractArchives(dir string) error {
	archives, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return err
	}
	for _, a := range archives {
		if err := unzip(a, dir); err != nil {
			return fmt.Errorf("failed to extract %s: %w", filepath.Base(a), err)
		}
	}
	return nil
}

func unzip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// pushNotebook writes a single-cell notebook with kernel metadata and pushes
// it with "kernels push".
func (e Env) pushNotebook(prefix string, source []string, keywords []string) engine.HandlerFunc {
	return func(ctx context.Context, req engine.Request) (engine.Outcome, error) {
		if req.Account == "" {
			return engine.Outcome{}, errors.New("account is required to push a notebook")
		}

		dir, cleanup, err := e.scratch(prefix)
		if err != nil {
			return engine.Outcome{}, err
		}
		defer cleanup()

		slug := e.slug(prefix)
		meta := KernelMetadata{
			ID:                 req.Account + "/" + slug,
			Title:              slug,
			CodeFile:           "notebook.ipynb",
			Language:           "python",
			KernelType:         "notebook",
			IsPrivate:          true,
			Keywords:           keywords,
			CompetitionSources: []string{titanic},
			DatasetSources:     []string{},
			KernelSources:      []string{},
			ModelSources:       []string{},
		}
		if err := WriteKernel(dir, NewNotebook(source), meta); err != nil {
			return engine.Outcome{}, err
		}

		if _, err := RunChecked(ctx, e.CLI, "kernels", "push", "-p", dir); err != nil {
			return engine.Outcome{}, err
		}

		req.Logger.Info().
			Str("kernel", meta.ID).
			Msg("Notebook pushed; it runs remotely, check with: kernels status " + meta.ID)
		return earn(ctx, req, "notebook="+slug)
	}
}

// Notebook is the minimal nbformat 4 document the CLI accepts.
type Notebook struct {
	Cells         []NotebookCell `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// NotebookCell is a single code cell.
type NotebookCell struct {
	CellType       string         `json:"cell_type"`
	ExecutionCount *int           `json:"execution_count"`
	Metadata       map[string]any `json:"metadata"`
	Outputs        []any          `json:"outputs"`
	Source         []string       `json:"source"`
}

// NewNotebook returns a Python notebook with one code cell.
func NewNotebook(source []string) Notebook {
	return Notebook{
		Cells: []NotebookCell{{
			CellType: "code",
			Metadata: map[string]any{},
			Outputs:  []any{},
			Source:   source,
		}},
		Metadata: map[string]any{
			"kernelspec": map[string]any{
				"display_name": "Python 3",
				"language":     "python",
				"name":         "python3",
			},
			"language_info": map[string]any{"name": "python", "version": "3.10.0"},
		},
		NBFormat:      4,
		NBFormatMinor: 4,
	}
}

// KernelMetadata is kernel-metadata.json as read by "kernels push".
type KernelMetadata struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	CodeFile           string   `json:"code_file"`
	Language           string   `json:"language"`
	KernelType         string   `json:"kernel_type"`
	IsPrivate          bool     `json:"is_private"`
	EnableGPU          bool     `json:"enable_gpu"`
	EnableTPU          bool     `json:"enable_tpu"`
	EnableInternet     bool     `json:"enable_internet"`
	Keywords           []string `json:"keywords"`
	CompetitionSources []string `json:"competition_sources"`
	DatasetSources     []string `json:"dataset_sources"`
	KernelSources      []string `json:"kernel_sources"`
	ModelSources       []string `json:"model_sources"`
}

// WriteKernel writes the notebook and its metadata into dir.
func WriteKernel(dir string, nb Notebook, meta KernelMetadata) error {
	if err := writeJSON(filepath.Join(dir, meta.CodeFile), nb); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "kernel-metadata.json"), meta)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var submissionSource = []string{
	"import pandas as pd\n",
	"\n",
	"test = pd.read_csv('/kaggle/input/titanic/test.csv')\n",
	"\n",
	"submission = pd.DataFrame({\n",
	"    'PassengerId': test['PassengerId'],\n",
	"    'Survived': 0\n",
	"})\n",
	"\n",
	"submission.to_csv('submission.csv', index=False)\n",
	"print(f'Submission shape: {submission.shape}')\n",
}

var modelerSource = []string{
	"import pandas as pd\n",
	"\n",
	"test = pd.read_csv('/kaggle/input/titanic/test.csv')\n",
	"\n",
	"submission = pd.DataFrame({\n",
	"    'PassengerId': test['PassengerId'],\n",
	"    'Survived': 0\n",
	"})\n",
	"\n",
	"submission.to_csv('submission.csv', index=False)\n",
	"print('Competition modeler submission created')\n",
}
