package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrUserAborted is returned when the run's cancellation signal fired
	// before the request finished.
	ErrUserAborted = errors.New("user aborted")

	// ErrTimeout is returned when the request did not finish within its
	// own deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrBodyTooLarge is returned when a response body exceeds the call's
	// size limit, declared or actual.
	ErrBodyTooLarge = errors.New("response body too large")
)

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// IsAborted reports whether err is (or wraps) a user cancellation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrUserAborted)
}

// StatusCode extracts the HTTP status of err, or 0.
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
