// SPDX-License-Identifier: MPL-2.0

package signer

import (
	"context"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
)

// CodeSigner signs .app folders with codesign. An empty identity signs ad hoc.
type CodeSigner struct {
	runner       toolexec.Runner
	identity     string
	entitlements string
	opts         options
}

// NewCodeSigner creates a codesign-backed signer.
func NewCodeSigner(runner toolexec.Runner, identity, entitlements string, opts ...Option) *CodeSigner {
	return &CodeSigner{runner: runner, identity: identity, entitlements: entitlements, opts: newOptions(opts)}
}

// Sign signs the bundle in place.
func (s *CodeSigner) Sign(ctx context.Context, app string) error {
	identity := s.identity
	if identity == "" {
		identity = "-"
	}
	s.opts.logger.Debug("codesigning", "app", app, "identity", identity)
	cmd := tools.CodesignSign{
		Path:         s.opts.tool,
		Identity:     s.identity,
		Entitlements: s.entitlements,
		Bundle:       app,
	}.Command()
	_, err := s.runner.Run(ctx, cmd)
	return err
}

// Verify runs a deep, strict codesign verification.
func (s *CodeSigner) Verify(ctx context.Context, app string) (*Verification, error) {
	if _, err := s.runner.Run(ctx, tools.CodesignVerify{Path: s.opts.tool, Bundle: app}.Command()); err != nil {
		return nil, verifyFailed(app, err)
	}
	return &Verification{Artifact: app}, nil
}
