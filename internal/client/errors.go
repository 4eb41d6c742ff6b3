package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransient wraps timeouts and network failures; callers may retry
	ErrTransient = errors.New("transient failure")
	// ErrAuthRejected means the token was absent, invalid or expired
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrSessionTerminated means the server severed the channel and it will not be retried
	ErrSessionTerminated = errors.New("session terminated by server")
	// ErrNotConnected is returned when sending without a live channel
	ErrNotConnected = errors.New("channel not connected")
	// ErrMoveRejected means the server refused a move sent over the channel
	ErrMoveRejected = errors.New("move rejected")
)

// APIError is a rejected command reported by the server
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap lets errors.Is classify 401 responses as ErrAuthRejected
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrAuthRejected
	}
	return nil
}

// IsCode reports whether err is an APIError with the given code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
