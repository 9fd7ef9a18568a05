package errors

import "fmt"

// ErrorCode represents a nestlog error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"      // 401
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrAlreadyProcessed ErrorCode = "ALREADY_PROCESSED" // 409
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrNotifyFailed     ErrorCode = "NOTIFY_FAILED"     // 502
)

// NestError represents a structured error with code, status, and details.
type NestError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *NestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *NestError {
	return &NestError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for requests missing cron credentials.
func NewUnauthorized(msg string) *NestError {
	return &NestError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error when no events exist for a date or window.
func NewNotFound(what string) *NestError {
	return &NestError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("no data found: %s", what),
		Details: map[string]any{"query": what},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *NestError {
	return &NestError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewAlreadyProcessed creates a 409 error for a message whose events are
// already stored.
func NewAlreadyProcessed(messageID string) *NestError {
	return &NestError{
		Code:    ErrAlreadyProcessed,
		Status:  409,
		Message: fmt.Sprintf("message already processed: %s", messageID),
		Details: map[string]any{"message_id": messageID},
	}
}

// NewCancelled creates a 499 error when the caller's context ends mid-operation.
func NewCancelled(op string) *NestError {
	return &NestError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewNotifyFailed creates a 502 error when the mail relay rejects a summary.
func NewNotifyFailed(err error) *NestError {
	msg := "notification failed"
	if err != nil {
		msg = err.Error()
	}
	return &NestError{
		Code:    ErrNotifyFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *NestError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &NestError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a NestError with the given code.
func Is(err error, code ErrorCode) bool {
	if nErr, ok := err.(*NestError); ok {
		return nErr.Code == code
	}
	return false
}
