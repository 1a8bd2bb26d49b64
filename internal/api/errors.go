package api

import (
	"errors"
	"fmt"
)

var (
	ErrTransient           = errors.New("transient upstream error")
	ErrRateLimited         = errors.New("upstream rate limited")
	ErrBlocked             = errors.New("upstream blocked request")
	ErrUpstreamApplication = errors.New("upstream application error")
	ErrMissingDataShape    = errors.New("upstream response missing expected data")

	// ErrFetchFailed is returned once every attempt and ladder rung is exhausted.
	ErrFetchFailed = errors.New("fetch failed")
)

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d", e.Code)
}
