// SPDX-License-Identifier: MPL-2.0

package signer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mobundle/mobundle/internal/toolexec"
)

// ErrVerificationFailed is the sentinel error wrapped by VerificationError.
var ErrVerificationFailed = errors.New("signature verification failed")

type (
	// Signer signs an artifact in place and verifies the result.
	Signer interface {
		Sign(ctx context.Context, artifact string) error
		Verify(ctx context.Context, artifact string) (*Verification, error)
	}

	// Verification is the outcome of a successful verification.
	Verification struct {
		Artifact string
		// Fingerprints are the SHA-256 certificate digests reported by the
		// verifier, lowercase hex without separators.
		Fingerprints []string
	}

	// VerificationError reports an artifact that failed verification.
	VerificationError struct {
		Artifact string
		Reason   string
		Err      error
	}

	// Option configures the Android signers and CodeSigner.
	Option func(*options)

	options struct {
		tool     string
		keytool  string
		expected string
		logger   *log.Logger
	}
)

// WithTool overrides the signing tool binary (apksigner, jarsigner or codesign).
func WithTool(path string) Option { return func(o *options) { o.tool = path } }

// WithKeytool sets the keytool binary used to read archive certificates.
func WithKeytool(path string) Option { return func(o *options) { o.keytool = path } }

// WithExpectedFingerprint makes Verify compare the signer certificate with fp.
// fp may use any case and colon separators.
func WithExpectedFingerprint(fp string) Option {
	return func(o *options) { o.expected = NormalizeFingerprint(fp) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

func newOptions(opts []Option) options {
	o := options{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("verify %s: %s", e.Artifact, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrVerificationFailed and the tool error, if any.
func (e *VerificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrVerificationFailed}
	}
	return []error{ErrVerificationFailed, e.Err}
}

// NormalizeFingerprint lowercases fp and strips colons and spaces.
func NormalizeFingerprint(fp string) string {
	return strings.ToLower(strings.NewReplacer(":", "", " ", "").Replace(strings.TrimSpace(fp)))
}

// ParseFingerprints extracts SHA-256 certificate digests from keytool
// ("SHA256: AB:CD:..") and apksigner ("... SHA-256 digest: abcd..") output.
func ParseFingerprints(output string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		var value string
		switch {
		case strings.HasPrefix(line, "SHA256:"):
			value = strings.TrimPrefix(line, "SHA256:")
		case strings.Contains(line, "SHA-256 digest:"):
			_, value, _ = strings.Cut(line, "SHA-256 digest:")
		default:
			continue
		}
		if fp := NormalizeFingerprint(value); fp != "" && !slices.Contains(out, fp) {
			out = append(out, fp)
		}
	}
	return out
}

// checkFingerprint fails when expected is set and absent from got.
func checkFingerprint(artifact, expected string, got []string) error {
	if expected == "" {
		return nil
	}
	if len(got) == 0 {
		return &VerificationError{Artifact: artifact, Reason: "no signer certificate reported"}
	}
	if !slices.Contains(got, expected) {
		return &VerificationError{
			Artifact: artifact,
			Reason:   fmt.Sprintf("signed by %s, expected %s", strings.Join(got, ", "), expected),
		}
	}
	return nil
}

// verifyFailed converts a failing verifier invocation into a
// VerificationError. Other errors (e.g. cancellation) pass through.
func verifyFailed(artifact string, err error) error {
	if tErr, ok := errors.AsType[*toolexec.ToolError](err); ok && !errors.Is(err, context.Canceled) {
		reason := strings.TrimSpace(tErr.Stderr)
		if reason == "" {
			reason = "verifier rejected the signature"
		}
		return &VerificationError{Artifact: artifact, Reason: reason, Err: err}
	}
	return err
}
