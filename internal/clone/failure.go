package clone

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"siteclone/internal/fetch"
	"siteclone/internal/generate"
)

type Stage string

const (
	StageInput       Stage = "input"
	StageAcquisition Stage = "acquisition"
	StageGeneration  Stage = "generation"
)

const CauseInvalidInput = "invalid_input"

// Failure is the only error Pipeline.Run returns. Cause holds a fetch.Cause,
// a generate.Cause or CauseInvalidInput depending on Stage.
type Failure struct {
	Stage      Stage
	Cause      string
	Detail     string
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("clone %s: %s: %v", f.Stage, f.Cause, f.Err)
	}
	return fmt.Sprintf("clone %s: %s", f.Stage, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Err }

// HTTPStatus is the response status a caller should report for the failure.
func (f *Failure) HTTPStatus() int {
	switch f.Stage {
	case StageInput:
		return http.StatusBadRequest
	case StageGeneration:
		return http.StatusInternalServerError
	}
	switch fetch.Cause(f.Cause) {
	case fetch.CauseTimeout, fetch.CauseRenderTimeout, fetch.CauseCanceled:
		return http.StatusRequestTimeout
	case fetch.CauseHTTPStatus:
		if f.StatusCode >= 400 && f.StatusCode <= 599 {
			return f.StatusCode
		}
	case fetch.CauseNetwork:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// AsFailure reports whether err carries a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func invalidInput(err error) *Failure {
	return &Failure{
		Stage:  StageInput,
		Cause:  CauseInvalidInput,
		Detail: fmt.Sprintf("Invalid target URL: %v", err),
		Err:    err,
	}
}

func acquisitionFailure(err error) *Failure {
	f := &Failure{Stage: StageAcquisition, Cause: string(fetch.CauseOf(err)), Err: err}
	var ferr *fetch.Error
	if errors.As(err, &ferr) {
		f.StatusCode = ferr.StatusCode
	}
	cause := errorText(err)
	switch fetch.Cause(f.Cause) {
	case fetch.CauseHTTPStatus:
		f.Detail = fmt.Sprintf("Error scraping original URL: Server responded with %d", f.StatusCode)
	case fetch.CauseEmptyContent:
		f.Detail = "Scraping yielded no content."
	case fetch.CauseTimeout, fetch.CauseRenderTimeout:
		f.Detail = fmt.Sprintf("Timed out fetching original URL. Error: %s", cause)
	case fetch.CauseLaunchFailure:
		f.Detail = fmt.Sprintf("Could not start headless browser. Error: %s", cause)
	case fetch.CauseCanceled:
		f.Detail = "Request canceled before the original URL was fetched."
	default:
		f.Detail = fmt.Sprintf("Could not scrape original URL. Error: %s", cause)
	}
	return f
}

func generationFailure(err error) *Failure {
	f := &Failure{Stage: StageGeneration, Cause: string(generate.CauseOf(err)), Err: err}
	switch generate.Cause(f.Cause) {
	case generate.CauseUnconfigured:
		f.Detail = "LLM API key not configured or missing."
	case generate.CauseInitialization:
		f.Detail = fmt.Sprintf("Failed to initialize LLM model: %s", errorText(errors.Unwrap(err)))
	default:
		var gerr *generate.Error
		if errors.As(err, &gerr) {
			f.Detail = fmt.Sprintf("Failed to generate HTML with LLM: %s", errorText(gerr.Err))
		} else {
			f.Detail = fmt.Sprintf("Unexpected server error during LLM processing: %s", errorText(err))
		}
	}
	return f
}

// errorText unwraps a *fetch.Error to the underlying fault.
func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	var ferr *fetch.Error
	if errors.As(err, &ferr) && ferr.Err != nil {
		err = ferr.Err
	}
	return strings.TrimSpace(err.Error())
}
