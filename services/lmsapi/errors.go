package lmsapi

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error is a non-2xx or unsuccessful backend response.
type Error struct {
	StatusCode int
	Message    string // the backend's message, if any
	Body       []byte
}

func newError(status int, msg string, body []byte) *Error {
	return &Error{StatusCode: status, Message: msg, Body: body}
}

func (err *Error) Error() string {
	if err.Message != "" {
		return fmt.Sprintf("backend error %d: %s", err.StatusCode, err.Message)
	}
	return fmt.Sprintf("backend error %d: %s", err.StatusCode, http.StatusText(err.StatusCode))
}

// UserMessage is the backend's own message, fit for display.
func (err *Error) UserMessage() string { return err.Message }

// IsUnauthorized reports whether err is a backend rejection of the token (401).
// A 403 only refuses one action; the token stays good.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
