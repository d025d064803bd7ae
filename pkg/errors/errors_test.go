package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(ErrCodeConfig, "bad enablement value"),
			want: "[E1001] bad enablement value",
		},
		{
			name: "with wrapped error",
			err:  Wrap(ErrCodeTransport, "request failed", errors.New("connection reset")),
			want: "[E2003] request failed: connection reset",
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

func TestUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := Wrap(ErrCodeIO, "write failed", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ErrCodeRateLimit, "throttled")); got != ErrCodeRateLimit {
		t.Errorf("CodeOf() = %v, want %v", got, ErrCodeRateLimit)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %v, want empty", got)
	}

	// Wrapped AppErrors are still classified
	wrapped := fmt.Errorf("outer: %w", ErrNotFound("label"))
	if got := CodeOf(wrapped); got != ErrCodeNotFound {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, ErrCodeNotFound)
	}
}

func TestPredicates(t *testing.T) {
	if !IsNotFound(ErrNotFound("milestone")) {
		t.Error("IsNotFound should match ErrNotFound")
	}
	if !IsRateLimit(ErrRateLimit("throttled", nil)) {
		t.Error("IsRateLimit should match ErrRateLimit")
	}
	if !IsConflict(ErrConflict("label exists")) {
		t.Error("IsConflict should match ErrConflict")
	}
	if !IsFatal(ErrFatal("bad credentials", nil)) {
		t.Error("IsFatal should match ErrFatal")
	}
	if !IsFatal(ErrConfig("cycle detected")) {
		t.Error("IsFatal should treat config errors as fatal")
	}
	if IsFatal(ErrIntegrity("missing parent")) {
		t.Error("IsFatal should not match integrity errors")
	}
}
