package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/config"
	"github.com/badgecollector/badgecollector/pkg/engine"
)

// DefaultScriptTimeout bounds a single script invocation.
const DefaultScriptTimeout = 10 * time.Minute

// scriptBuiltins are the names predeclared for every script.
var scriptBuiltins = map[string]bool{
	"struct":         true,
	"json":           true,
	"should_attempt": true,
	"set_status":     true,
	"cli":            true,
	"scratch_dir":    true,
	"write_file":     true,
	"unique":         true,
}

// ScriptOptions configures how scripts run.
type ScriptOptions struct {
	// CLI backs the cli builtin. Nil makes cli calls fail.
	CLI CommandRunner

	// Timeout bounds one invocation. Zero means DefaultScriptTimeout.
	Timeout time.Duration

	// WorkDir is the parent of per-invocation scratch directories. Empty
	// means the system temp directory.
	WorkDir string
}

// Script is a compiled operator handler written in Starlark. The file must
// define run(account, targets) returning a bool or a (bool, detail) tuple.
//
// Predeclared names:
//
//	should_attempt(id)              pending or failed, see below
//	set_status(id, status, details) record a status for one of the targets
//	cli(args...)                    run the platform CLI; returns stdout, stderr, exit_code, ok
//	scratch_dir()                   per-invocation directory, removed afterwards
//	write_file(name, content)       write under scratch_dir(); returns the path
//	unique(prefix)                  prefix plus a random suffix
//	json, struct                    the standard Starlark modules
//
// The orchestrator marks targets attempting before the script runs, so
// should_attempt(id) is true for the script's own targets until the script
// records another status for them. For any other id it answers for the
// record as stored: pending or failed.
type Script struct {
	spec    config.ScriptConfig
	program *starlark.Program
	opts    ScriptOptions
}

// LoadScript reads and compiles the script named by spec.
func LoadScript(spec config.ScriptConfig, opts ScriptOptions) (*Script, error) {
	src, err := os.ReadFile(spec.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", spec.File, err)
	}
	return CompileScript(spec, src, opts)
}

// CompileScript compiles src without executing it.
func CompileScript(spec config.ScriptConfig, src []byte, opts ScriptOptions) (*Script, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultScriptTimeout
	}

	f, prog, err := starlark.SourceProgram(spec.File, src, func(name string) bool { return scriptBuiltins[name] })
	if err != nil {
		return nil, fmt.Errorf("failed to compile script %s: %w", spec.File, err)
	}
	if !definesRun(f) {
		return nil, fmt.Errorf("script %s does not define run(account, targets)", spec.File)
	}

	return &Script{spec: spec, program: prog, opts: opts}, nil
}

func definesRun(f *syntax.File) bool {
	for _, stmt := range f.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok && def.Name.Name == "run" {
			return true
		}
	}
	return false
}

// Handler returns the engine handler that runs the script.
func (s *Script) Handler() engine.Handler {
	return engine.Handler{
		Name:         s.spec.Name,
		Phase:        s.spec.Phase,
		Targets:      s.spec.Targets,
		Requires:     s.spec.Requires,
		Instructions: s.spec.Instructions,
		NeedsAccount: s.spec.NeedsAccount,
		Run:          s.Run,
	}
}

// Run executes the script once. Targets the script leaves in attempting are
// marked earned on success and failed otherwise.
func (s *Script) Run(ctx context.Context, req engine.Request) (engine.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	sc := &scratchDir{parent: s.opts.WorkDir, prefix: "script-"}
	defer sc.cleanup(req.Logger)

	thread := &starlark.Thread{
		Name: s.spec.Name,
		Print: func(_ *starlark.Thread, msg string) {
			req.Logger.Info().Str("script", s.spec.Name).Msg(msg)
		},
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := s.program.Init(thread, s.predeclared(ctx, req, sc))
	if err != nil {
		return engine.Outcome{}, s.evalError(err)
	}

	fn, ok := globals["run"].(starlark.Callable)
	if !ok {
		return engine.Outcome{}, fmt.Errorf("script %s: run is not callable", s.spec.File)
	}

	targets := make([]starlark.Value, len(req.Targets))
	for i, id := range req.Targets {
		targets[i] = starlark.String(id)
	}

	ret, err := starlark.Call(thread, fn, starlark.Tuple{starlark.String(req.Account), starlark.NewList(targets)}, nil)
	if err != nil {
		return engine.Outcome{}, s.evalError(err)
	}

	outcome, err := toOutcome(ret)
	if err != nil {
		return engine.Outcome{}, fmt.Errorf("script %s: %w", s.spec.File, err)
	}

	if err := s.settle(ctx, req, outcome); err != nil {
		return engine.Outcome{}, err
	}
	return outcome, nil
}

func (s *Script) evalError(err error) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return fmt.Errorf("script %s failed: %s", s.spec.File, evalErr.Backtrace())
	}
	return fmt.Errorf("script %s failed: %w", s.spec.File, err)
}

// settle resolves targets still in attempting after the script returned.
func (s *Script) settle(ctx context.Context, req engine.Request, outcome engine.Outcome) error {
	status := engine.StatusFailed
	if outcome.Success {
		status = engine.StatusEarned
	}
	for _, id := range req.Targets {
		rec, err := req.Recorder.Status(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != engine.StatusAttempting {
			continue
		}
		if err := req.Recorder.SetStatus(ctx, id, status, outcome.Detail); err != nil {
			return err
		}
	}
	return nil
}

func toOutcome(v starlark.Value) (engine.Outcome, error) {
	switch val := v.(type) {
	case starlark.Bool:
		return engine.Outcome{Success: bool(val)}, nil
	case starlark.Tuple:
		if len(val) == 2 {
			ok, isBool := val[0].(starlark.Bool)
			detail, isStr := val[1].(starlark.String)
			if isBool && isStr {
				return engine.Outcome{Success: bool(ok), Detail: string(detail)}, nil
			}
		}
	}
	return engine.Outcome{}, fmt.Errorf("run must return a bool or (bool, detail), got %s", v.Type())
}

func (s *Script) predeclared(ctx context.Context, req engine.Request, sc *scratchDir) starlark.StringDict {
	allowed := make(map[string]bool, len(req.Targets))
	for _, id := range req.Targets {
		allowed[id] = true
	}

	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"json":   json.Module,

		"should_attempt": starlark.NewBuiltin("should_attempt", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id); err != nil {
				return nil, err
			}
			rec, err := req.Recorder.Status(ctx, id)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(scriptShouldAttempt(allowed, id, rec)), nil
		}),

		"set_status": starlark.NewBuiltin("set_status", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id, status, details string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id, "status", &status, "details?", &details); err != nil {
				return nil, err
			}
			if !allowed[id] {
				return nil, fmt.Errorf("%s: %q is not a target of %s", b.Name(), id, s.spec.Name)
			}
			st, err := engine.ParseStatus(status)
			if err != nil {
				return nil, err
			}
			if err := req.Recorder.SetStatus(ctx, id, st, details); err != nil {
				return nil, err
			}
			return starlark.None, nil
		}),

		"cli": starlark.NewBuiltin("cli", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(kwargs) > 0 {
				return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
			}
			if s.opts.CLI == nil {
				return nil, fmt.Errorf("%s: no CLI configured", b.Name())
			}
			argv := make([]string, len(args))
			for i, a := range args {
				str, ok := starlark.AsString(a)
				if !ok {
					return nil, fmt.Errorf("%s: argument %d is %s, want string", b.Name(), i, a.Type())
				}
				argv[i] = str
			}
			res, err := s.opts.CLI.Run(ctx, argv...)
			if err != nil {
				return nil, err
			}
			return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
				"stdout":    starlark.String(res.Stdout),
				"stderr":    starlark.String(res.Stderr),
				"exit_code": starlark.MakeInt(res.ExitCode),
				"ok":        starlark.Bool(res.OK()),
			}), nil
		}),

		"scratch_dir": starlark.NewBuiltin("scratch_dir", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			dir, err := sc.dir()
			if err != nil {
				return nil, err
			}
			return starlark.String(dir), nil
		}),

		"write_file": starlark.NewBuiltin("write_file", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name, content string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "content", &content); err != nil {
				return nil, err
			}
			path, err := sc.write(name, content)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			return starlark.String(path), nil
		}),

		"unique": starlark.NewBuiltin("unique", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var prefix string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "prefix", &prefix); err != nil {
				return nil, err
			}
			return starlark.String(ResourceName(prefix)), nil
		}),
	}
}

// scratchDir is a directory created on first use and removed by cleanup.
type scratchDir struct {
	parent string
	prefix string
	path   string
}

func (s *scratchDir) dir() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	if s.parent != "" {
		if err := os.MkdirAll(s.parent, 0o755); err != nil {
			return "", fmt.Errorf("failed to create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.parent, s.prefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	s.path = dir
	return dir, nil
}

// write stores content at name relative to the scratch directory. Names
// may not leave it.
func (s *scratchDir) write(name, content string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is outside the scratch directory", name)
	}
	dir, err := s.dir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *scratchDir) cleanup(logger zerolog.Logger) {
	if s.path == "" {
		return
	}
	if err := os.RemoveAll(s.path); err != nil {
		logger.Warn().Err(err).Str("dir", s.path).Msg("Failed to remove scratch dir")
	}
}

// scriptShouldAttempt treats the handler's own targets still in attempting
// as attemptable.
func scriptShouldAttempt(targets map[string]bool, id string, rec engine.StatusRecord) bool {
	if targets[id] && rec.Status == engine.StatusAttempting {
		return true
	}
	return engine.ShouldAttempt(rec)
}

// ScriptHandlers compiles every configured script into a handler.
func ScriptHandlers(specs []config.ScriptConfig, opts ScriptOptions) ([]engine.Handler, error) {
	hs := make([]engine.Handler, 0, len(specs))
	for _, spec := range specs {
		sc, err := LoadScript(spec, opts)
		if err != nil {
			return nil, err
		}
		hs = append(hs, sc.Handler())
	}
	return hs, nil
}
