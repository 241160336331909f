package handler

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/store"
	"github.com/kjstillabower/weather-record-service/internal/validation"
)

// ErrorCategory is a stable label for error classification in responses, metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryConnection  ErrorCategory = "connection"
	ErrorCategoryValidation  ErrorCategory = "validation"
	ErrorCategoryParsing     ErrorCategory = "parsing"
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryUnsupported ErrorCategory = "unsupported"
	ErrorCategoryPersistence ErrorCategory = "persistence"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Connection first: a connect timeout wraps both ErrConnection and DeadlineExceeded.
	if errors.Is(err, store.ErrConnection) {
		return ErrorCategoryConnection
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	if errors.Is(err, validation.ErrValidation) {
		return ErrorCategoryValidation
	}

	if errors.Is(err, ErrInvalidBody) || errors.Is(err, ErrInvalidID) ||
		errors.Is(err, models.ErrInvalidDate) || errors.Is(err, models.ErrInvalidValue) {
		return ErrorCategoryParsing
	}

	if errors.Is(err, ErrUnsupportedOperation) {
		return ErrorCategoryUnsupported
	}

	return ErrorCategoryPersistence
}

// Code returns the error code used in response bodies.
func (c ErrorCategory) Code() string {
	switch c {
	case ErrorCategoryConnection:
		return "CONNECTION_ERROR"
	case ErrorCategoryValidation:
		return "VALIDATION_ERROR"
	case ErrorCategoryParsing:
		return "PARSE_ERROR"
	case ErrorCategoryTimeout:
		return "TIMEOUT"
	case ErrorCategoryUnsupported:
		return "UNSUPPORTED_OPERATION"
	default:
		return "PERSISTENCE_ERROR"
	}
}
