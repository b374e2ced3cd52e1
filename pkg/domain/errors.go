package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// ErrUnauthenticated is returned when a privileged call carries no
	// resolvable identity
	ErrUnauthenticated = errors.New("user not authenticated")

	// ErrConnectionClosed is returned when trying to use a closed connection
	ErrConnectionClosed = errors.New("connection closed")

	// ErrConnectionNotFound is returned when a connection id is unknown to the hub
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrNotConnected is returned when the client is not connected to the hub
	ErrNotConnected = errors.New("not connected to server")

	// ErrHubStopped is returned when trying to use a hub that has been stopped
	ErrHubStopped = errors.New("hub stopped")

	// ErrSendQueueFull is returned when a connection's outbound queue overflows
	ErrSendQueueFull = errors.New("send queue full")
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeConnection      = "CONNECTION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalid         = "INVALID"
	ErrCodeInternal        = "INTERNAL"
)
