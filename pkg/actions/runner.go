package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CommandResult is the captured outcome of one CLI invocation.
type CommandResult struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// OK reports whether the command exited with status zero.
func (r *CommandResult) OK() bool {
	return r.ExitCode == 0
}

// CommandRunner runs the platform CLI. A non-zero exit is reported in the
// result, not as an error; errors mean the command could not run at all.
type CommandRunner interface {
	Run(ctx context.Context, args ...string) (*CommandResult, error)
}

// CommandError is returned by RunChecked for a non-zero exit.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := truncate(strings.TrimSpace(e.Stderr), 200); s != "" {
		msg += ": " + s
	}
	return msg
}

// RunChecked runs a command and turns a non-zero exit into a *CommandError.
func RunChecked(ctx context.Context, r CommandRunner, args ...string) (*CommandResult, error) {
	res, err := r.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return res, &CommandError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

// CLIOptions configures a CLI runner.
type CLIOptions struct {
	// Binary is the executable name or path.
	Binary string

	// Timeout bounds a single invocation. Zero means no limit.
	Timeout time.Duration

	// Delay is the minimum pause between consecutive invocations.
	Delay time.Duration

	// Env replaces the process environment when non-nil.
	Env []string
}

// CLI runs the platform command line client.
type CLI struct {
	opts   CLIOptions
	logger zerolog.Logger

	mu   sync.Mutex
	last time.Time
}

var _ CommandRunner = (*CLI)(nil)

// NewCLI creates a runner for opts.Binary.
func NewCLI(opts CLIOptions, logger zerolog.Logger) *CLI {
	return &CLI{
		opts:   opts,
		logger: logger.With().Str("component", "cli").Logger(),
	}
}

// Binary returns the executable the runner invokes.
func (c *CLI) Binary() string {
	return c.opts.Binary
}

// Run executes the binary with args and captures its output.
func (c *CLI) Run(ctx context.Context, args ...string) (*CommandResult, error) {
	if c.opts.Binary == "" {
		return nil, errors.New("cli binary is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.opts.Binary, args...)
	cmd.WaitDelay = time.Second
	if c.opts.Env != nil {
		cmd.Env = c.opts.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.last = time.Now()

	result := &CommandResult{
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %s: %w", c.opts.Binary, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", c.opts.Binary, strings.Join(args, " "), ctx.Err())
		}
		result.ExitCode = exitErr.ExitCode()
	}

	c.logger.Debug().
		Strs("args", args).
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("Command finished")

	return result, nil
}

// pace waits until Delay has passed since the previous call.
func (c *CLI) pace(ctx context.Context) error {
	if c.opts.Delay <= 0 || c.last.IsZero() {
		return nil
	}
	wait := c.opts.Delay - time.Since(c.last)
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
