package engine

import (
	"errors"
	"testing"
)

func TestToolErrorKindIsRetryable(t *testing.T) {
	retryable := []ToolErrorKind{ToolErrTimeout, ToolErrNetwork, ToolErrRateLimit}
	for _, k := range retryable {
		if !k.IsRetryable() {
			t.Errorf("expected %q to be retryable", k)
		}
	}
	notRetryable := []ToolErrorKind{ToolErrNotFound, ToolErrInvalidInput, ToolErrPermission, ToolErrExecution, ToolErrUnknown}
	for _, k := range notRetryable {
		if k.IsRetryable() {
			t.Errorf("expected %q to not be retryable", k)
		}
	}
}

func TestToolErrorUnwrapAndMessage(t *testing.T) {
	cause := errors.New("boom")
	e := &ToolError{Kind: ToolErrExecution, Tool: "Read", Message: "failed", Cause: cause}
	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if e.Error() == "" {
		t.Fatal("expected non-empty error message")
	}

	bare := &ToolError{Kind: ToolErrNotFound, Tool: "Read", Message: "missing"}
	if bare.Unwrap() != nil {
		t.Fatal("expected nil Unwrap when no cause is set")
	}
}

func TestIsAborted(t *testing.T) {
	if IsAborted(nil) {
		t.Fatal("nil error should not be aborted")
	}
	if IsAborted(errors.New("other")) {
		t.Fatal("unrelated error should not match abort sentinel")
	}
	if !IsAborted(errors.New(AbortedMessage)) {
		t.Fatal("expected the exact sentinel message to be recognized as aborted")
	}
}
