// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/mobundle/mobundle/internal/publish"
	"github.com/mobundle/mobundle/internal/signer"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/pkg/types"
)

type (
	// Option configures a pipeline.
	Option func(*options)

	options struct {
		logger    *log.Logger
		publisher *publish.Publisher
		cargo     string
		keytool   string
		lookupEnv toolchain.LookupEnvFunc
	}
)

// WithLogger sets the logger passed to every stage.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithPublisher uploads the signed artifact after verification.
func WithPublisher(p *publish.Publisher) Option { return func(o *options) { o.publisher = p } }

// WithCargo overrides the cargo binary.
func WithCargo(path string) Option { return func(o *options) { o.cargo = path } }

// WithKeytool overrides the keytool binary.
func WithKeytool(path string) Option { return func(o *options) { o.keytool = path } }

// WithLookupEnv overrides environment lookups made by the compiler driver.
func WithLookupEnv(fn toolchain.LookupEnvFunc) Option { return func(o *options) { o.lookupEnv = fn } }

func newOptions(opts []Option) options {
	o := options{logger: log.New(io.Discard), lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// forEachTarget runs fn for every target with at most jobs in flight and
// returns the results in target order. Without keepGoing the first failure
// cancels the context of the others and is returned alone; with keepGoing
// every target runs and all failures are joined.
func forEachTarget[T any](ctx context.Context, targets []target.Target, jobs int, keepGoing bool, fn func(context.Context, target.Target) (T, error)) ([]T, error) {
	results := make([]T, len(targets))
	errs := make([]error, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, t := range targets {
		g.Go(func() error {
			r, err := fn(gctx, t)
			if err != nil {
				if keepGoing {
					errs[i] = err
					return nil
				}
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

// signArtifact signs artifact in place and, when verify is set, verifies it.
// A failed verification leaves the artifact on disk.
func signArtifact(ctx context.Context, report *Report, sgn signer.Signer, artifact string, verify bool) error {
	if err := sgn.Sign(ctx, artifact); err != nil {
		return stageErr(StageSign, target.Target{}, err)
	}
	report.record(StageSign, "", artifact)
	if !verify {
		return nil
	}
	v, err := sgn.Verify(ctx, artifact)
	if err != nil {
		return stageErr(StageVerify, target.Target{}, err)
	}
	report.Verification = v
	return nil
}

// publishArtifact uploads the final artifact when a publisher is configured.
func publishArtifact(ctx context.Context, report *Report, id types.Identity, o options) error {
	if o.publisher == nil {
		return nil
	}
	up, err := o.publisher.Publish(ctx, id, report.Artifact)
	if err != nil {
		return stageErr(StagePublish, target.Target{}, err)
	}
	report.Upload = up
	return nil
}
