package fetch

import (
	"errors"
	"fmt"
)

// Kind is the closed classification of fetch outcomes. Classification is
// derived from the status code and a block-marker scan, never from error
// message text.
type Kind string

const (
	// KindBlocked means the site actively refused service (403, captcha
	// or rate-limit page). Terminal; never retried.
	KindBlocked Kind = "blocked"
	// KindRetryable covers transient failures (429, 502, 503, timeout)
	// eligible for the bounded retry schedule.
	KindRetryable Kind = "retryable"
	// KindFatal covers every other failure. Not retried.
	KindFatal Kind = "fatal"
)

// Error is a classified fetch failure.
type Error struct {
	Kind       Kind
	StatusCode int
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s: HTTP %d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the error may be retried.
func (e *Error) Retryable() bool { return e.Kind == KindRetryable }

// KindOf extracts the classification from an error, defaulting to fatal
// for errors that did not come out of the fetcher.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindFatal
}
