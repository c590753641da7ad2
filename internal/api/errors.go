package api

import (
	"errors"
	"fmt"
)

// ErrBreakerOpen is returned without contacting the backend while the
// circuit breaker is open.
var ErrBreakerOpen = errors.New("backend circuit breaker open")

// ErrStatus indicates the backend answered with a non-2xx status.
type ErrStatus struct {
	StatusCode int
	Body       string
}

func (e *ErrStatus) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *ErrStatus) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ErrDecode indicates the response body was not valid JSON.
type ErrDecode struct {
	Err error
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("decode knowledge graph: %v", e.Err)
}

func (e *ErrDecode) Unwrap() error { return e.Err }

// ErrUnavailable indicates the backend could not be reached.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend unavailable: %v", e.Err)
	}
	return "backend unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from err, or 0 when there is none.
func StatusCode(err error) int {
	var se *ErrStatus
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
