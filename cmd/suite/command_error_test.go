package main

import (
	"errors"
	"fmt"
	"testing"
)

func TestCommandError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{
			name: "with stderr",
			err:  NewCommandError("docker compose up", 1, "disk full", nil),
			want: "docker compose up (exit 1): disk full",
		},
		{
			name: "with wrapped only",
			err:  NewCommandError("docker volume ls", 125, "", errors.New("daemon unreachable")),
			want: "docker volume ls (exit 125): daemon unreachable",
		},
		{
			name: "bare",
			err:  NewCommandError("ollama serve", -1, "", nil),
			want: "ollama serve (exit -1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError_StderrTrimmed(t *testing.T) {
	err := NewCommandError("docker compose up", 1, "  failed \n", nil)
	if err.Stderr != "failed" {
		t.Errorf("Stderr = %q, want trimmed %q", err.Stderr, "failed")
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := NewCommandError("docker compose down", 1, "", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should see through CommandError")
	}

	var cmdErr *CommandError
	wrapped := fmt.Errorf("stopping stack: %w", err)
	if !errors.As(wrapped, &cmdErr) {
		t.Fatal("errors.As should find CommandError in the chain")
	}
	if cmdErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", cmdErr.ExitCode)
	}
}

func TestWrapCommandError(t *testing.T) {
	if WrapCommandError(nil, "x", 0, "") != nil {
		t.Error("wrapping nil should return nil")
	}

	original := NewCommandError("docker compose up", 1, "boom", nil)
	if got := WrapCommandError(original, "other", 2, "ignored"); got != original {
		t.Error("existing CommandError must not be double-wrapped")
	}

	wrapped := WrapCommandError(errors.New("plain"), "docker compose pull", 18, "network timeout")
	if wrapped.Command != "docker compose pull" || wrapped.Stderr != "network timeout" {
		t.Errorf("wrapped = %+v, want command and stderr preserved", wrapped)
	}
}

func TestExtractStderr(t *testing.T) {
	deep := fmt.Errorf("outer: %w",
		fmt.Errorf("middle: %w",
			NewCommandError("docker compose up", 1, "port already allocated", nil)))

	if got := ExtractStderr(deep); got != "port already allocated" {
		t.Errorf("ExtractStderr() = %q, want %q", got, "port already allocated")
	}

	if got := ExtractStderr(errors.New("no command involved")); got != "" {
		t.Errorf("ExtractStderr() on plain error = %q, want empty", got)
	}
	if got := ExtractStderr(nil); got != "" {
		t.Errorf("ExtractStderr(nil) = %q, want empty", got)
	}
}

func TestSentinelErrors_SurviveWrapping(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"prerequisite", ErrPrerequisiteMissing},
		{"engine", ErrEngineUnavailable},
		{"state", ErrStateConflict},
		{"confirmation", ErrConfirmationDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("install: %w", tt.sentinel)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is failed for %v", tt.sentinel)
			}
		})
	}
}
