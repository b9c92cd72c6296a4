package brief

import "errors"

var (
	// ErrInvalidInput is returned for requests that cannot produce a brief.
	ErrInvalidInput = errors.New("invalid brief request")
	// ErrUpstreamUnavailable is returned when the SERP has no results or the
	// existing page cannot be fetched.
	ErrUpstreamUnavailable = errors.New("upstream data unavailable")
)
