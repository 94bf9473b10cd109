// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mobundle/mobundle/internal/config"
	"github.com/mobundle/mobundle/internal/issue"
	"github.com/mobundle/mobundle/internal/publish"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/internal/toolexec"
)

// annotationConfigOptional marks commands that still run, with defaults,
// when the configuration cannot be loaded.
const annotationConfigOptional = "mobundle.config-optional"

type (
	// PublisherFactory builds a Publisher from the publish settings.
	PublisherFactory func(ctx context.Context, cfg publish.Config, opts ...publish.Option) (*publish.Publisher, error)

	// App is the composition root for the CLI layer. Cobra handlers receive
	// an App and reach every service through it.
	App struct {
		Config       config.Provider
		Runner       toolexec.Runner
		LookupEnv    toolchain.LookupEnvFunc
		Getwd        func() (string, error)
		NewPublisher PublisherFactory

		stdout io.Writer
		stderr io.Writer

		// Set from persistent flags.
		verbose    bool
		configFile string

		// Set by prepare before any RunE.
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config       config.Provider
		Runner       toolexec.Runner
		LookupEnv    toolchain.LookupEnvFunc
		Getwd        func() (string, error)
		NewPublisher PublisherFactory
		Stdout       io.Writer
		Stderr       io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.LookupEnv == nil {
		deps.LookupEnv = os.LookupEnv
	}
	if deps.Getwd == nil {
		deps.Getwd = os.Getwd
	}
	if deps.NewPublisher == nil {
		deps.NewPublisher = publish.NewFromConfig
	}

	return &App{
		Config:       deps.Config,
		Runner:       deps.Runner,
		LookupEnv:    deps.LookupEnv,
		Getwd:        deps.Getwd,
		NewPublisher: deps.NewPublisher,
		stdout:       deps.Stdout,
		stderr:       deps.Stderr,
		logger:       log.New(io.Discard),
	}, nil
}

// prepare loads the configuration and builds the logger and tool runner.
// It runs once per invocation as the root's PersistentPreRunE.
func (a *App) prepare(cmd *cobra.Command) error {
	cfg, path, err := a.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: a.configFile})
	if err != nil {
		if cmd.Annotations[annotationConfigOptional] == "" {
			return a.fail(err)
		}
		cfg = config.DefaultConfig()
		path = ""
		a.warn(formatErrorForDisplay(err, a.verbose))
	}
	a.cfg = cfg
	a.cfgPath = path
	if cfg.UI.Verbose {
		a.verbose = true
	}

	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Level:  level,
		Prefix: "mobundle",
	})

	if a.Runner == nil {
		a.Runner = toolexec.NewExecRunner(toolexec.WithLogger(a.logger))
	}
	return nil
}

// run adapts a handler so every failure is classified and its catalogue
// entry rendered before cobra sees it.
func (a *App) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		if _, ok := errors.AsType[*ExitError](err); ok {
			return err
		}
		return a.fail(err)
	}
}

// fail wraps err in a ServiceError and renders its help section.
func (a *App) fail(err error) error {
	if svcErr, ok := errors.AsType[*ServiceError](err); ok {
		return svcErr
	}
	var styled string
	if ae, ok := errors.AsType[*issue.ActionableError](err); ok && (len(ae.Suggestions) > 0 || a.verbose) {
		styled = ErrorStyle.Render("✗ ") + ae.Format(a.verbose) + "\n\n"
	}
	svcErr := newServiceError(err, classifyError(err), styled)
	renderServiceError(a.stderr, svcErr, a.issueStyle(), a.logger)
	return svcErr
}

func (a *App) issueStyle() string {
	scheme := config.ColorSchemeAuto
	if a.cfg != nil {
		scheme = a.cfg.UI.ColorScheme
	}
	return issueStyle(scheme, a.stderr)
}

func (a *App) warn(msg string) {
	_, _ = io.WriteString(a.stderr, WarningStyle.Render("Warning: ")+msg+"\n")
}

// loadedConfig returns the loaded configuration, or the defaults before
// prepare ran.
func (a *App) loadedConfig() *config.Config {
	if a.cfg == nil {
		return config.DefaultConfig()
	}
	return a.cfg
}
