package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes that are not HTTP statuses.
const (
	// CodeNetwork means no response was received (unreachable, timeout, cancelled).
	CodeNetwork = 0
	// CodeUnexpected covers everything else: request build failures, unreadable bodies.
	CodeUnexpected = -1
)

// MessageRejected is used when an error response carries no reason of its own.
const MessageRejected = "An error occurred"

const (
	msgNetwork    = "Network error - please check your connection"
	msgUnexpected = "An unexpected error occurred"
)

// Error is the normalized failure every Client operation returns.
type Error struct {
	Message  string // Human readable reason
	Code     int    // HTTP status, CodeNetwork or CodeUnexpected
	Details  string // Optional backend-provided details
	Endpoint string // Logical endpoint name, e.g. "login"
	Err      error  // Underlying cause, when there is one
}

func (e *Error) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s (code %d)", e.Endpoint, e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether no response was received.
func (e *Error) IsNetwork() bool {
	return e.Code == CodeNetwork
}

// IsHTTP reports whether the backend answered with an error status.
func (e *Error) IsHTTP() bool {
	return e.Code >= http.StatusBadRequest
}

// AsError extracts an *Error from err. Errors that did not come from the Client are
// wrapped as CodeUnexpected so callers always get the same shape.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Message: msgUnexpected, Code: CodeUnexpected, Err: err}
}

// StatusCode returns the normalized code carried by err.
func StatusCode(err error) int {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return http.StatusOK
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNetwork reports whether err means the backend could not be reached.
func IsNetwork(err error) bool {
	e := AsError(err)
	return e != nil && e.IsNetwork()
}

func networkError(endpoint string, err error) *Error {
	return &Error{Message: msgNetwork, Code: CodeNetwork, Endpoint: endpoint, Err: err}
}

func unexpectedError(endpoint string, err error) *Error {
	return &Error{Message: msgUnexpected, Code: CodeUnexpected, Endpoint: endpoint, Err: err}
}
