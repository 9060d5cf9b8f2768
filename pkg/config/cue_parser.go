package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
)

// DefaultFileName is the configuration file looked up when none is given.
const DefaultFileName = "badges.cue"

// ValidationError is a single configuration problem with its position.
type ValidationError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e ValidationError) String() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// LoadError reports every problem found in one configuration file.
type LoadError struct {
	Path   string
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	lines := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		lines[i] = ve.String()
	}
	return fmt.Sprintf("invalid configuration %s:\n  %s", e.Path, strings.Join(lines, "\n  "))
}

// Loader parses campaign configuration files against the built-in schema.
type Loader struct {
	ctx       *cue.Context
	schema    cue.Value
	validator *validator.Validate
}

// NewLoader creates a loader with the compiled schema.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}
	return &Loader{
		ctx:       ctx,
		schema:    schema,
		validator: validator.New(),
	}, nil
}

// Load reads the configuration at path. A missing file yields Default().
// Relative paths in the file are resolved against the file's directory.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := l.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := l.Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes CUE source on top of Default() and validates the result.
func (l *Loader) Parse(data []byte, filename string) (*Config, error) {
	val := l.ctx.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, &LoadError{Path: filename, Errors: convertCUEErrors(err)}
	}

	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Path: filename, Errors: convertCUEErrors(err)}
	}

	cfg := Default()
	if err := unified.Decode(cfg); err != nil {
		return nil, &LoadError{Path: filename, Errors: convertCUEErrors(err)}
	}

	if err := l.validateStruct(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks an already decoded configuration.
func (l *Loader) Validate(cfg *Config) error {
	return l.validateStruct("config", cfg)
}

func (l *Loader) validateStruct(name string, cfg *Config) error {
	err := l.validator.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := &LoadError{Path: name}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Message: fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()),
		})
	}
	return out
}

func (c *Config) resolvePaths(dir string) {
	c.Progress.Path = joinIfRelative(dir, c.Progress.Path)
	c.History.Path = joinIfRelative(dir, c.History.Path)
	c.TemplatesDir = joinIfRelative(dir, c.TemplatesDir)
	c.WorkDir = joinIfRelative(dir, c.WorkDir)
	c.Telemetry.MetricsTextfile = joinIfRelative(dir, c.Telemetry.MetricsTextfile)
	for i := range c.Policies {
		c.Policies[i] = joinIfRelative(dir, c.Policies[i])
	}
	for i := range c.Scripts {
		c.Scripts[i].File = joinIfRelative(dir, c.Scripts[i].File)
	}
}

func joinIfRelative(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// convertCUEErrors flattens a CUE error list into positioned entries.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{Message: strings.TrimSpace(cueerrors.Details(e, nil))}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			// prefer the user's file over the schema
			p := pos[0]
			for _, cand := range pos {
				if cand.Filename() != schemaFileName {
					p = cand
					break
				}
			}
			ve.File = p.Filename()
			ve.Line = p.Line()
			ve.Column = p.Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}
