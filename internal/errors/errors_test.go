package errors

import (
	"fmt"
	"testing"
)

func TestNestError_Error(t *testing.T) {
	err := &NestError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "no data found: 2025-06-10",
	}

	expected := "NOT_FOUND: no data found: 2025-06-10"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *NestError
		code   ErrorCode
		status int
	}{
		{"invalid request", NewInvalidRequest("date is required"), ErrInvalidRequest, 400},
		{"unauthorized", NewUnauthorized("missing cron token"), ErrUnauthorized, 401},
		{"not found", NewNotFound("2025-06-10"), ErrNotFound, 404},
		{"file not found", NewFileNotFound("/tmp/x.jsonl"), ErrFileNotFound, 404},
		{"already processed", NewAlreadyProcessed("msg-1"), ErrAlreadyProcessed, 409},
		{"cancelled", NewCancelled("ingest"), ErrCancelled, 499},
		{"internal", NewInternal(fmt.Errorf("boom")), ErrInternal, 500},
		{"notify failed", NewNotifyFailed(fmt.Errorf("relay refused")), ErrNotifyFailed, 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
		})
	}
}

func TestNewNotFound_Details(t *testing.T) {
	err := NewNotFound("2025-06-10")

	if err.Details["query"] != "2025-06-10" {
		t.Errorf("Details[query] = %v, want %q", err.Details["query"], "2025-06-10")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestNewNotifyFailed_NilError(t *testing.T) {
	if got := NewNotifyFailed(nil).Message; got != "notification failed" {
		t.Errorf("Message = %q", got)
	}
}

func TestIs(t *testing.T) {
	err := NewNotFound("2025-06-10")

	if !Is(err, ErrNotFound) {
		t.Error("Is(err, ErrNotFound) = false, want true")
	}
	if Is(err, ErrInternal) {
		t.Error("Is(err, ErrInternal) = true, want false")
	}

	stdErr := fmt.Errorf("standard error")
	if Is(stdErr, ErrNotFound) {
		t.Error("Is(stdErr, ErrNotFound) = true, want false")
	}
	if Is(nil, ErrNotFound) {
		t.Error("Is(nil, ErrNotFound) = true, want false")
	}
}
