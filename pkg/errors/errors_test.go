package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required", detailsOK: true},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeStateConflict, status: http.StatusConflict, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeDependencyBlocked, status: http.StatusConflict, publicMsg: "blocked by dependent records", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestReasonSurvivesDetailsAndWrapping(t *testing.T) {
	err := New(CodeStateConflict, "cannot withdraw").WithReason("CannotWithdrawProcessed")
	details, ok := err.Details().(map[string]any)
	if !ok || details["reason"] != "CannotWithdrawProcessed" {
		t.Fatalf("expected reason mirrored into details, got %#v", err.Details())
	}

	err.WithDetails(map[string]any{"status": "approved"})
	details = err.Details().(map[string]any)
	if details["reason"] != "CannotWithdrawProcessed" || details["status"] != "approved" {
		t.Fatalf("expected reason kept after WithDetails, got %#v", details)
	}

	outer := fmt.Errorf("handler: %w", err)
	if got := ReasonOf(outer); got != "CannotWithdrawProcessed" {
		t.Fatalf("expected reason through wrapping, got %q", got)
	}
	if got := CodeOf(outer); got != CodeStateConflict {
		t.Fatalf("expected state conflict code, got %s", got)
	}
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("expected untyped errors to be internal, got %s", got)
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsMatchesCodeAndReason(t *testing.T) {
	err := fmt.Errorf("service: %w", New(CodeStateConflict, "cannot approve").WithReason("AlreadyProcessed"))

	if !stdErrors.Is(err, New(CodeStateConflict, "")) {
		t.Fatal("code-only target should match")
	}
	if !stdErrors.Is(err, New(CodeStateConflict, "").WithReason("AlreadyProcessed")) {
		t.Fatal("code and reason target should match")
	}
	if stdErrors.Is(err, New(CodeStateConflict, "").WithReason("ProgramFull")) {
		t.Fatal("different reason must not match")
	}
	if stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("different code must not match")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Wrap(CodeDependency, stdErrors.New("redis down"), "rate limit")) {
		t.Fatal("dependency errors are retryable")
	}
	if IsRetryable(New(CodeValidation, "bad input")) {
		t.Fatal("validation errors are not retryable")
	}
	if !IsRetryable(stdErrors.New("untyped")) {
		t.Fatal("untyped errors map to internal, which is retryable")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeValidation, "limit must be <= %d", 100)
	if err.Message() != "limit must be <= 100" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}
