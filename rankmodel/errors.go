package rankmodel

import "errors"

var (
	// ErrArtifactMissing means the model or feature-list file does not exist.
	// Scoring cannot start without it.
	ErrArtifactMissing = errors.New("model artifact missing")

	// ErrInvalidArtifact means an artifact exists but cannot be used.
	ErrInvalidArtifact = errors.New("invalid model artifact")
)
