// Package api is the client for the users API the sign-up page posts to.
package api

import (
	"fmt"
	"strings"

	"github.com/livetemplate/signup"
)

// ValidationError is the one failure the page knows how to show: the server
// rejected the submission (HTTP 400) and said why, per field.
type ValidationError struct {
	Errors signup.FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "users api: validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, f := range signup.Fields {
		if msg := e.Errors.For(f); msg != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", f, msg))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("users api: validation failed (%d unrecognized fields)", len(e.Errors))
	}
	return "users api: validation failed: " + strings.Join(parts, ", ")
}

// HTTPError represents any non-2xx, non-400 response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("users api: HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
	}
	return fmt.Sprintf("users api: HTTP %d %s", e.StatusCode, e.Status)
}

// RequestError wraps failures that happen before a response arrives.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("users api: %s failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
