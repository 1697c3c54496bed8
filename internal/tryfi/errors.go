package tryfi

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// transportMessage describes a failed round trip without the underlying
// error text, which carries addresses and resolver details.
func transportMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "vendor request timed out"
	case errors.Is(err, context.Canceled):
		return "vendor request cancelled"
	default:
		return "vendor unreachable"
	}
}

// AuthError reports a login the vendor rejected or could not be reached for.
// Err holds the transport cause, if any; it is never part of Error().
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fi login failed (status %d): %s", e.Status, e.Message)
	}
	return "fi login failed: " + e.Message
}

// AuthExtractionError reports a login that succeeded without yielding a usable
// session. It lists header names and strategies, never values.
type AuthExtractionError struct {
	CookieName  string
	HeaderNames []string
	Tried       []string
}

func (e *AuthExtractionError) Error() string {
	return fmt.Sprintf("fi login returned no %q session (strategies tried: %s; response headers: %s)",
		e.CookieName, strings.Join(e.Tried, ", "), strings.Join(e.HeaderNames, ", "))
}

// QueryError reports a failed GraphQL operation.
type QueryError struct {
	Operation string
	Status    int
	Message   string
	Err       error
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fi query %s failed (status %d): %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("fi query %s failed: %s", e.Operation, e.Message)
}
