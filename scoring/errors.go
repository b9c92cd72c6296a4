package scoring

import "errors"

// ErrNoSerpData is returned when an enrichment has no organic results to score against.
var ErrNoSerpData = errors.New("no SERP data to score")
