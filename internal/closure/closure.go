// SPDX-License-Identifier: MPL-2.0

package closure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/mobundle/mobundle/internal/target"
)

// ErrDependencyNotFound is the sentinel error wrapped by MissingDependencyError.
var ErrDependencyNotFound = errors.New("shared library dependency not found")

type (
	// Library is one shared object in the closure.
	Library struct {
		// Name is the DT_NEEDED name, e.g. "libfoo.so".
		Name string
		// Path is where the file was found on the build host.
		Path   string
		Target target.Target
	}

	// Closure is an insertion-ordered set of libraries keyed by Name.
	Closure struct {
		libs  []Library
		index map[string]int
	}

	// Introspector lists the DT_NEEDED entries of a shared object.
	Introspector interface {
		Needed(ctx context.Context, path string) ([]string, error)
	}

	// Request is one resolution for one target.
	Request struct {
		Target target.Target
		// Root is the compiled library; it is the first entry of the closure.
		Root string
		// SearchPaths are probed in order for each dependency.
		SearchPaths []string
		// SystemLibs are provided by the platform and never packaged.
		SystemLibs []string
		// RuntimeLib is the C++ runtime; when a library needs it, it is added
		// from this path without being inspected. Zero value disables it.
		RuntimeLib Library
		// Strict turns missing dependencies into errors.
		Strict bool
	}

	// Result is the outcome of Resolve.
	Result struct {
		Closure *Closure
		// Missing holds the dependencies that were not found (non-strict mode).
		Missing []*MissingDependencyError
	}

	// Resolver walks dependency graphs with an Introspector.
	Resolver struct {
		introspector Introspector
		logger       *log.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// MissingDependencyError names a NEEDED entry that no search path provides.
	MissingDependencyError struct {
		Name string
		// NeededBy is the library that declared the dependency.
		NeededBy    string
		Target      target.Target
		SearchPaths []string
	}

	// frame is one library on the explicit DFS stack.
	frame struct {
		lib    Library
		needed []string
		next   int
	}
)

// NewClosure returns an empty closure.
func NewClosure() *Closure {
	return &Closure{index: make(map[string]int)}
}

// Add inserts l unless a library with the same name is present. It reports
// whether l was added.
func (c *Closure) Add(l Library) bool {
	if _, ok := c.index[l.Name]; ok {
		return false
	}
	c.index[l.Name] = len(c.libs)
	c.libs = append(c.libs, l)
	return true
}

// Contains reports whether a library named name is in the closure.
func (c *Closure) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Get returns the library named name.
func (c *Closure) Get(name string) (Library, bool) {
	i, ok := c.index[name]
	if !ok {
		return Library{}, false
	}
	return c.libs[i], true
}

// Libraries returns the libraries in insertion order.
func (c *Closure) Libraries() []Library { return slices.Clone(c.libs) }

// Len returns the number of libraries.
func (c *Closure) Len() int { return len(c.libs) }

// WithLogger sets the logger used for missing-dependency warnings.
func WithLogger(l *log.Logger) Option { return func(r *Resolver) { r.logger = l } }

// NewResolver creates a Resolver.
func NewResolver(in Introspector, opts ...Option) *Resolver {
	r := &Resolver{introspector: in, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the closure of req.Root. Introspection failures are
// fatal. Missing dependencies are collected (and logged) unless req.Strict
// is set, in which case the first one is returned.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Closure: NewClosure()}
	root := Library{Name: filepath.Base(req.Root), Path: req.Root, Target: req.Target}
	res.Closure.Add(root)

	rootNeeded, err := r.introspector.Needed(ctx, root.Path)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", root.Path, err)
	}
	stack := []*frame{{lib: root, needed: rootNeeded}}
	reported := make(map[string]bool)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.needed) {
			stack = stack[:len(stack)-1]
			continue
		}
		name := top.needed[top.next]
		top.next++

		switch {
		case req.RuntimeLib.Name != "" && name == req.RuntimeLib.Name:
			rt := req.RuntimeLib
			rt.Target = req.Target
			res.Closure.Add(rt)
			continue
		case slices.Contains(req.SystemLibs, name):
			continue
		case res.Closure.Contains(name), reported[name]:
			continue
		}

		path, ok := find(name, req.SearchPaths)
		if !ok {
			missing := &MissingDependencyError{Name: name, NeededBy: top.lib.Name, Target: req.Target, SearchPaths: req.SearchPaths}
			if req.Strict {
				return nil, missing
			}
			r.logger.Warn("dependency not found, not packaged", "library", name, "needed_by", top.lib.Name, "target", req.Target.ABI())
			reported[name] = true
			res.Missing = append(res.Missing, missing)
			continue
		}

		lib := Library{Name: name, Path: path, Target: req.Target}
		res.Closure.Add(lib)
		needed, err := r.introspector.Needed(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", path, err)
		}
		stack = append(stack, &frame{lib: lib, needed: needed})
	}
	return res, nil
}

func find(name string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s (needed by %s) not found for %s in %d search path(s)", e.Name, e.NeededBy, e.Target.ABI(), len(e.SearchPaths))
}

// Unwrap returns ErrDependencyNotFound for errors.Is() compatibility.
func (e *MissingDependencyError) Unwrap() error { return ErrDependencyNotFound }
