package fetch

import (
	"errors"
	"fmt"
)

type Cause string

const (
	CauseTimeout       Cause = "timeout"
	CauseHTTPStatus    Cause = "http_status"
	CauseNetwork       Cause = "network_error"
	CauseEmptyContent  Cause = "empty_content"
	CauseRenderTimeout Cause = "render_timeout"
	CauseLaunchFailure Cause = "launch_failure"
	CauseCanceled      Cause = "canceled"
)

// Error is a classified acquisition failure.
type Error struct {
	Cause      Cause
	StatusCode int
	URL        string
	Err        error
}

func (e *Error) Error() string {
	switch e.Cause {
	case CauseHTTPStatus:
		return fmt.Sprintf("fetch %s: server responded with %d", e.URL, e.StatusCode)
	case CauseEmptyContent:
		return fmt.Sprintf("fetch %s: no content", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Cause, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Cause)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(cause Cause, url string, err error) *Error {
	return &Error{Cause: cause, URL: url, Err: err}
}

// CauseOf returns the cause of a fetch error, or CauseNetwork for anything
// that was not classified at its origin.
func CauseOf(err error) Cause {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Cause
	}
	return CauseNetwork
}
