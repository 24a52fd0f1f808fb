package apierrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call into one of the supported error categories.
type Kind int

const (
	KindTimeout Kind = iota
	KindNetwork
	KindHTTP
	KindCircuitOpen
	KindValidation
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindCircuitOpen:
		return "circuit_open"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ServiceError is the single error type crossing the client boundary. Every
// failed call produces exactly one ServiceError; raw transport faults never
// escape unclassified.
type ServiceError struct {
	Kind    Kind
	Message string
	Status  int // HTTP status, set only for KindHTTP
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Common error constructors
func NewTimeoutError(message string, cause error) *ServiceError {
	return &ServiceError{Kind: KindTimeout, Message: message, Cause: cause}
}

func NewNetworkError(message string, cause error) *ServiceError {
	return &ServiceError{Kind: KindNetwork, Message: message, Cause: cause}
}

func NewHTTPError(status int, message string) *ServiceError {
	return &ServiceError{Kind: KindHTTP, Status: status, Message: message}
}

func NewCircuitOpenError(dependency string) *ServiceError {
	return &ServiceError{Kind: KindCircuitOpen, Message: fmt.Sprintf("circuit breaker open for %s", dependency)}
}

func NewValidationError(message string) *ServiceError {
	return &ServiceError{Kind: KindValidation, Message: message}
}

// AsServiceError extracts a ServiceError from an error chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCircuitOpen checks if the error is a circuit open rejection
func IsCircuitOpen(err error) bool {
	se, ok := AsServiceError(err)
	return ok && se.Kind == KindCircuitOpen
}

// Retryable reports whether an already-classified error is worth another
// attempt. Client-side HTTP errors (4xx) and validation failures are not
// transient; circuit rejections must surface immediately.
func Retryable(err *ServiceError) bool {
	if err == nil {
		return false
	}
	switch err.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindHTTP:
		return err.Status >= 500
	default:
		return false
	}
}
