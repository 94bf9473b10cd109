// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"

	"github.com/mobundle/mobundle/internal/closure"
	"github.com/mobundle/mobundle/internal/publish"
	"github.com/mobundle/mobundle/internal/signer"
	"github.com/mobundle/mobundle/internal/target"
)

// Pipeline stages.
const (
	StageDiscover  Stage = "discover"
	StageCompile   Stage = "compile"
	StageResolve   Stage = "resolve"
	StageManifest  Stage = "manifest"
	StageResources Stage = "resources"
	StageLink      Stage = "link"
	StageAssemble  Stage = "assemble"
	StageSign      Stage = "sign"
	StageVerify    Stage = "verify"
	StagePublish   Stage = "publish"
)

type (
	// Stage names one step of a pipeline.
	Stage string

	// StageError annotates a failure with the stage and target it came from.
	StageError struct {
		Stage Stage
		// Target is zero for stages that run once per build.
		Target target.Target
		Err    error
	}

	// Artifact is one entry of the artifact history.
	Artifact struct {
		Stage Stage
		// Step refines Stage for multi-step stages such as assembly.
		Step string
		Path string
	}

	// Report describes a finished (or partially finished) build.
	Report struct {
		Platform target.Platform
		// Artifact is the final signed package.
		Artifact string
		History  []Artifact
		// Libraries are the packaged shared objects in target order.
		Libraries []closure.Library
		// Missing are dependencies dropped with a warning.
		Missing      []*closure.MissingDependencyError
		Verification *signer.Verification
		Upload       *publish.Upload
	}
)

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Target.IsZero() {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Stage, e.Target.ABI(), e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(s Stage, t target.Target, err error) error {
	return &StageError{Stage: s, Target: t, Err: err}
}

func (r *Report) record(s Stage, step, path string) {
	r.History = append(r.History, Artifact{Stage: s, Step: step, Path: path})
}
