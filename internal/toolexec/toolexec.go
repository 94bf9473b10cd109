// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/mobundle/mobundle/pkg/types"
)

// maxCapturedOutput bounds the stdout/stderr kept on a ToolError.
const maxCapturedOutput = 64 * 1024

// ErrToolFailed is the sentinel error wrapped by ToolError.
var ErrToolFailed = errors.New("external tool failed")

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Command describes one invocation of an external tool.
	Command struct {
		Name string
		Args []string
		// Env holds variables added on top of the current process environment.
		Env map[string]string
		// Dir is the working directory; empty means the current directory.
		Dir string
	}

	// Result is the captured outcome of a successful invocation.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode types.ExitCode
	}

	// Runner executes commands. Implementations must honour ctx cancellation
	// by terminating the child process.
	Runner interface {
		Run(ctx context.Context, cmd Command) (*Result, error)
	}

	// ExecRunner is the Runner backed by os/exec.
	ExecRunner struct {
		execCommand ExecCommandFunc
		logger      *log.Logger
	}

	// Option configures an ExecRunner.
	Option func(*ExecRunner)

	// ToolError reports a tool that could not be started or exited non-zero.
	ToolError struct {
		Command  Command
		ExitCode types.ExitCode
		Stdout   string
		Stderr   string
		Err      error
	}
)

// WithExecCommand overrides the exec.Cmd factory.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *ExecRunner) { r.execCommand = fn }
}

// WithLogger sets the logger used for per-command debug output.
func WithLogger(l *log.Logger) Option {
	return func(r *ExecRunner) { r.logger = l }
}

// NewExecRunner creates a runner that spawns real processes.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		execCommand: exec.CommandContext,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd, capturing stdout and stderr. A non-zero exit is returned
// as a *ToolError; the invocation is never retried.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	c := r.execCommand(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		if c.Env == nil {
			c.Env = os.Environ()
		}
		c.Env = append(c.Env, cmd.EnvList()...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	r.logger.Debug("exec", "cmd", cmd.String(), "dir", cmd.Dir)
	err := c.Run()

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	toolErr := &ToolError{
		Command: cmd,
		Stdout:  truncate(res.Stdout),
		Stderr:  truncate(res.Stderr),
		Err:     err,
	}
	if exitErr, ok := errors.AsType[*exec.ExitError](err); ok {
		toolErr.ExitCode = types.ExitCode(exitErr.ExitCode())
	} else {
		toolErr.ExitCode = 1
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		toolErr.Err = errors.Join(err, ctxErr)
	}
	res.ExitCode = toolErr.ExitCode
	return res, toolErr
}

// EnvList renders Env as sorted KEY=VALUE pairs.
func (c Command) EnvList() []string {
	keys := slices.Sorted(maps.Keys(c.Env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// String renders the command as a shell-quoted line, prefixed by its
// extra environment.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+len(c.Args)+1)
	for _, kv := range c.EnvList() {
		k, v, _ := strings.Cut(kv, "=")
		parts = append(parts, k+"="+quote(v))
	}
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s exited with code %d", e.Command.Name, e.ExitCode)
	if e.ExitCode.IsSignal() {
		b.WriteString(" (killed by signal)")
	}
	fmt.Fprintf(&b, "\ncommand: %s", e.Command.String())
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", s)
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", s)
	}
	return b.String()
}

// Unwrap returns ErrToolFailed together with the underlying process error.
func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolFailed}
	}
	return []error{ErrToolFailed, e.Err}
}

// quote shell-quotes s for display; strings that cannot be quoted are
// rendered with Go syntax.
func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return q
}

func truncate(s string) string {
	if len(s) <= maxCapturedOutput {
		return s
	}
	return "..." + s[len(s)-maxCapturedOutput:]
}
