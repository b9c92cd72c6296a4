package planner

import "errors"

// ErrNoKeywords is returned when a scoring request selects nothing.
var ErrNoKeywords = errors.New("no keywords selected")
