package serp

import "errors"

var (
	// ErrProviderUnavailable wraps search or authority provider failures.
	ErrProviderUnavailable = errors.New("serp provider unavailable")

	// ErrNotConfigured is returned by providers missing an API key.
	ErrNotConfigured = errors.New("serp provider not configured")

	// ErrNoResults is recorded when the provider answers with no organic results.
	ErrNoResults = errors.New("no organic results")

	// ErrEmptyKeyword is returned by Enrich for a blank keyword.
	ErrEmptyKeyword = errors.New("keyword is required")
)
