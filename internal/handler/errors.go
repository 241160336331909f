package handler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is wrapped by OperationError for methods outside the five handled ones.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidBody is returned when the request body is not a JSON object of record fields.
	ErrInvalidBody = errors.New("invalid request body")

	// ErrInvalidID is returned when the id path parameter is missing or not an integer.
	ErrInvalidID = errors.New("invalid weather id")
)

// OperationError reports a request method the handler does not serve. No response
// is produced for it; the caller decides how to surface the failure.
type OperationError struct {
	Method string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("Operation Error: %q", e.Method)
}

func (e *OperationError) Unwrap() error {
	return ErrUnsupportedOperation
}
