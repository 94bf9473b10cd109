// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	// Statuses as the pipeline sees them from cargo, aapt2, apksigner and
	// tools killed when a sibling target fails.
	tests := []struct {
		name        string
		code        ExitCode
		wantValid   bool
		wantSuccess bool
		wantSignal  bool
	}{
		{name: "tool succeeded", code: 0, wantValid: true, wantSuccess: true},
		{name: "apksigner rejected the apk", code: 1, wantValid: true},
		{name: "cargo compile error", code: 101, wantValid: true},
		{name: "tool not executable", code: 126, wantValid: true},
		{name: "boundary is not a signal", code: 128, wantValid: true},
		{name: "interrupted", code: 130, wantValid: true, wantSignal: true},
		{name: "killed on cancellation", code: 137, wantValid: true, wantSignal: true},
		{name: "terminated", code: 143, wantValid: true, wantSignal: true},
		{name: "top of range", code: 255, wantValid: true, wantSignal: true},
		{name: "windows negative status", code: -1},
		{name: "above a byte", code: 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.code.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("ExitCode(%d).Validate() = %v, wantValid %v", tt.code, err, tt.wantValid)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidExitCode) {
					t.Errorf("Validate() error %v does not wrap ErrInvalidExitCode", err)
				}
				return
			}
			if got := tt.code.IsSuccess(); got != tt.wantSuccess {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.wantSuccess)
			}
			if got := tt.code.IsSignal(); got != tt.wantSignal {
				t.Errorf("IsSignal() = %v, want %v", got, tt.wantSignal)
			}
		})
	}

	if got := ExitCode(101).String(); got != "101" {
		t.Errorf("String() = %q, want %q", got, "101")
	}
}
