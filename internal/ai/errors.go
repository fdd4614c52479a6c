package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
)

// ErrMissingCredentials is returned when no API key is configured. Callers
// treat it as "skip analysis for this run", never as a retryable failure.
var ErrMissingCredentials = errors.New("ai: missing API credentials")

// ErrorKind classifies a failed model request.
type ErrorKind int

const (
	// Transient failures (rate limits, timeouts, 5xx) may be retried.
	Transient ErrorKind = iota + 1
	// Permanent failures (bad input, policy refusals, empty output) are not.
	Permanent
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// RequestError is returned by providers for any failed model call.
type RequestError struct {
	Kind       ErrorKind
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request error: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable request failure.
func IsTransient(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == Transient
}

// IsPermanent reports whether err is a non-retryable request failure.
func IsPermanent(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == Permanent
}

func transientErr(err error) *RequestError { return &RequestError{Kind: Transient, Err: err} }

func permanentErr(err error) *RequestError { return &RequestError{Kind: Permanent, Err: err} }

// statusError builds a RequestError for a non-2xx HTTP response.
func statusError(code int, msg string) *RequestError {
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &RequestError{Kind: KindForStatus(code), StatusCode: code, Err: errors.New(msg)}
}

// KindForStatus maps an HTTP status code to an ErrorKind: 408, 429 and 5xx
// are transient, everything else is permanent.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return Transient
	case code >= 500:
		return Transient
	default:
		return Permanent
	}
}

// statusInText finds an HTTP status code embedded in an SDK error string.
var statusInText = regexp.MustCompile(`(?i)(?:status(?: code)?[:= ]*|error, )(\d{3})\b`)

// classify wraps an arbitrary error from a model call in a RequestError.
// Errors that are already classified pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var re *RequestError
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transientErr(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return transientErr(err)
	}
	if m := statusInText.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil && code >= 400 {
			return &RequestError{Kind: KindForStatus(code), StatusCode: code, Err: err}
		}
	}
	return transientErr(err)
}
