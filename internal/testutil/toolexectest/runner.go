// SPDX-License-Identifier: MPL-2.0

package toolexectest

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/pkg/types"
)

type (
	// Handler emulates one tool invocation.
	Handler func(cmd toolexec.Command) (*toolexec.Result, error)

	// Runner records every command and dispatches it to the handler registered
	// for the command's base name. Commands without a handler succeed silently.
	// Runner is safe for concurrent use.
	Runner struct {
		mu       sync.Mutex
		handlers map[string]Handler
		calls    []toolexec.Command
	}
)

// NewRunner creates an empty fake runner.
func NewRunner() *Runner {
	return &Runner{handlers: make(map[string]Handler)}
}

// Handle registers h for commands whose base name is name.
func (r *Runner) Handle(name string, h Handler) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return r
}

// Run implements toolexec.Runner.
func (r *Runner) Run(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	h := r.handlers[filepath.Base(cmd.Name)]
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &toolexec.ToolError{Command: cmd, ExitCode: 1, Err: err}
	}
	if h == nil {
		return &toolexec.Result{}, nil
	}
	return h(cmd)
}

// Calls returns a copy of the recorded commands in invocation order.
func (r *Runner) Calls() []toolexec.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsTo returns the recorded commands whose base name is name.
func (r *Runner) CallsTo(name string) []toolexec.Command {
	var out []toolexec.Command
	for _, c := range r.Calls() {
		if filepath.Base(c.Name) == name {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the base names of the recorded commands in order.
func (r *Runner) Names() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = filepath.Base(c.Name)
	}
	return out
}

// Fail returns a handler that exits with code and writes stderr.
func Fail(code int, stderr string) Handler {
	return func(cmd toolexec.Command) (*toolexec.Result, error) {
		return &toolexec.Result{Stderr: stderr, ExitCode: types.ExitCode(code)},
			&toolexec.ToolError{Command: cmd, ExitCode: types.ExitCode(code), Stderr: stderr}
	}
}

// Stdout returns a handler that succeeds printing out.
func Stdout(out string) Handler {
	return func(toolexec.Command) (*toolexec.Result, error) {
		return &toolexec.Result{Stdout: out}, nil
	}
}

// WriteArgFile returns a handler that creates the file named by the argument
// following flag (e.g. "-o"), with content. Parent directories are created.
func WriteArgFile(flag, content string) Handler {
	return func(cmd toolexec.Command) (*toolexec.Result, error) {
		i := slices.Index(cmd.Args, flag)
		if i < 0 || i+1 >= len(cmd.Args) {
			return &toolexec.Result{}, nil
		}
		if err := writeFile(cmd.Args[i+1], content); err != nil {
			return nil, err
		}
		return &toolexec.Result{}, nil
	}
}

// WriteLastArg returns a handler that creates the file named by the final
// argument, as zipalign and lipo-style tools do.
func WriteLastArg(content string) Handler {
	return func(cmd toolexec.Command) (*toolexec.Result, error) {
		if len(cmd.Args) == 0 {
			return &toolexec.Result{}, nil
		}
		if err := writeFile(cmd.Args[len(cmd.Args)-1], content); err != nil {
			return nil, err
		}
		return &toolexec.Result{}, nil
	}
}

// AssertSequence fails the test unless the recorded base names equal want.
func (r *Runner) AssertSequence(t testing.TB, want ...string) {
	t.Helper()
	if got := r.Names(); !slices.Equal(got, want) {
		t.Errorf("command sequence = [%s], want [%s]", strings.Join(got, " "), strings.Join(want, " "))
	}
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
