// Package executor runs external commands with output capture, extra
// environment, retries and context cancellation. The release build step is
// built on top of it.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Result holds the output and exit status of a command.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Attempts int
	Duration time.Duration
}

// Tail returns at most n trailing lines of the combined output, or of
// stderr when output was captured separately.
func (r *Result) Tail(n int) string {
	out := r.Combined
	if out == "" {
		out = r.Stderr
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q exited with code %d: %s", e.Command, e.ExitCode, e.Output)
}

// Executor runs commands.
type Executor interface {
	Execute(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// Options configures a single execution.
type Options struct {
	// CaptureCombined interleaves stdout and stderr into Result.Combined
	// instead of capturing them separately.
	CaptureCombined bool

	// Stdout and Stderr receive a live copy of the output.
	Stdout io.Writer
	Stderr io.Writer

	// MaxRetries is the number of additional attempts after a failure.
	MaxRetries int
	RetryDelay time.Duration
	// RetryOn decides whether a failure is retried. Nil retries every failure.
	RetryOn func(error) bool

	WorkingDir string

	// Env is appended to the current process environment.
	Env map[string]string

	Input string
}

// Option modifies Options.
type Option func(*Options)

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		RetryDelay: time.Second,
		Env:        map[string]string{},
	}
}

// CommandExecutor runs commands with os/exec.
type CommandExecutor struct {
	defaults *Options
	logger   *slog.Logger
}

// ExecutorOption configures a CommandExecutor.
type ExecutorOption func(*CommandExecutor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(c *CommandExecutor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDefaults sets options applied before the per-call options.
func WithDefaults(opts ...Option) ExecutorOption {
	return func(c *CommandExecutor) {
		for _, opt := range opts {
			opt(c.defaults)
		}
	}
}

// New creates a CommandExecutor.
func New(opts ...ExecutorOption) *CommandExecutor {
	c := &CommandExecutor{
		defaults: DefaultOptions(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs program with args, retrying failures as configured. The
// returned Result describes the last attempt and is non-nil whenever the
// command was started.
func (c *CommandExecutor) Execute(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	if program == "" {
		return nil, errors.New("program cannot be empty")
	}
	options := c.mergeOptions(opts...)
	display := strings.TrimSpace(program + " " + strings.Join(args, " "))

	var (
		result *Result
		err    error
	)
	started := time.Now()
	for attempt := 1; attempt <= options.MaxRetries+1; attempt++ {
		result, err = c.executeOnce(ctx, program, args, options)
		if result != nil {
			result.Attempts = attempt
			result.Duration = time.Since(started)
		}
		if err == nil {
			return result, nil
		}

		c.logger.Debug("command failed",
			"command", display,
			"attempt", attempt,
			"error", err)

		if attempt > options.MaxRetries || (options.RetryOn != nil && !options.RetryOn(err)) {
			break
		}
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(options.RetryDelay):
		}
	}
	return result, err
}

func (c *CommandExecutor) executeOnce(ctx context.Context, program string, args []string, options *Options) (*Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = options.WorkingDir
	if len(options.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(options.Env)...)
	}
	if options.Input != "" {
		cmd.Stdin = strings.NewReader(options.Input)
	}

	var stdout, stderr, combined bytes.Buffer
	if options.CaptureCombined {
		cmd.Stdout = teeTo(&combined, options.Stdout)
		cmd.Stderr = teeTo(&combined, options.Stderr)
	} else {
		cmd.Stdout = teeTo(&stdout, options.Stdout)
		cmd.Stderr = teeTo(&stderr, options.Stderr)
	}

	runErr := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		return result, nil
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{
			Command:  strings.TrimSpace(program + " " + strings.Join(args, " ")),
			ExitCode: result.ExitCode,
			Output:   result.Tail(5),
		}
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("command execution failed: %w", runErr)
	}
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.defaults
	merged.Env = make(map[string]string, len(c.defaults.Env))
	for k, v := range c.defaults.Env {
		merged.Env[k] = v
	}
	for _, opt := range opts {
		opt(&merged)
	}
	return &merged
}

func teeTo(buf *bytes.Buffer, extra io.Writer) io.Writer {
	if extra == nil {
		return buf
	}
	return io.MultiWriter(buf, extra)
}

// envList renders env as KEY=VALUE pairs in key order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// WithCombinedOutput captures stdout and stderr into one stream.
func WithCombinedOutput() Option {
	return func(o *Options) {
		o.CaptureCombined = true
	}
}

// WithOutput streams output to the given writers in addition to capturing it.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Options) {
		o.Stdout = stdout
		o.Stderr = stderr
	}
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithRetryCondition sets a custom retry condition.
func WithRetryCondition(fn func(error) bool) Option {
	return func(o *Options) {
		o.RetryOn = fn
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithInput feeds input to the command's stdin.
func WithInput(input string) Option {
	return func(o *Options) {
		o.Input = input
	}
}
