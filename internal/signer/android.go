// SPDX-License-Identifier: MPL-2.0

package signer

import (
	"context"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
)

type (
	// APKSigner signs APKs with apksigner.
	APKSigner struct {
		runner toolexec.Runner
		key    tools.Keystore
		opts   options
	}

	// JarSigner signs app bundles with jarsigner.
	JarSigner struct {
		runner toolexec.Runner
		key    tools.Keystore
		opts   options
	}
)

// NewAPKSigner creates an APK signer for key.
func NewAPKSigner(runner toolexec.Runner, key tools.Keystore, opts ...Option) *APKSigner {
	return &APKSigner{runner: runner, key: key, opts: newOptions(opts)}
}

// Sign signs apk in place.
func (s *APKSigner) Sign(ctx context.Context, apk string) error {
	s.opts.logger.Debug("signing apk", "apk", apk, "alias", s.key.Alias)
	_, err := s.runner.Run(ctx, tools.ApksignerSign{Path: s.opts.tool, Key: s.key, APK: apk}.Command())
	return err
}

// Verify checks the APK signature and, when an expected fingerprint is
// configured, that it was signed by that certificate.
func (s *APKSigner) Verify(ctx context.Context, apk string) (*Verification, error) {
	res, err := s.runner.Run(ctx, tools.ApksignerVerify{Path: s.opts.tool, APK: apk}.Command())
	if err != nil {
		return nil, verifyFailed(apk, err)
	}
	fps := ParseFingerprints(res.Stdout)
	if err := checkFingerprint(apk, s.opts.expected, fps); err != nil {
		return nil, err
	}
	return &Verification{Artifact: apk, Fingerprints: fps}, nil
}

// NewJarSigner creates an app bundle signer for key.
func NewJarSigner(runner toolexec.Runner, key tools.Keystore, opts ...Option) *JarSigner {
	return &JarSigner{runner: runner, key: key, opts: newOptions(opts)}
}

// Sign signs the archive in place.
func (s *JarSigner) Sign(ctx context.Context, archive string) error {
	s.opts.logger.Debug("signing bundle", "bundle", archive, "alias", s.key.Alias)
	_, err := s.runner.Run(ctx, tools.JarsignerSign{Path: s.opts.tool, Key: s.key, Archive: archive}.Command())
	return err
}

// Verify runs jarsigner -verify. jarsigner does not print digests, so
// the signer certificates are read with keytool -printcert when an
// expected fingerprint is configured.
func (s *JarSigner) Verify(ctx context.Context, archive string) (*Verification, error) {
	if _, err := s.runner.Run(ctx, tools.JarsignerVerify{Path: s.opts.tool, Archive: archive}.Command()); err != nil {
		return nil, verifyFailed(archive, err)
	}
	v := &Verification{Artifact: archive}
	if s.opts.expected == "" {
		return v, nil
	}
	res, err := s.runner.Run(ctx, tools.KeytoolPrintCert{Path: s.opts.keytool, JarFile: archive}.Command())
	if err != nil {
		return nil, verifyFailed(archive, err)
	}
	v.Fingerprints = ParseFingerprints(res.Stdout)
	if err := checkFingerprint(archive, s.opts.expected, v.Fingerprints); err != nil {
		return nil, err
	}
	return v, nil
}
