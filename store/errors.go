package store

import "errors"

// ErrNotFound is returned when a list, keyword or brief does not exist.
var ErrNotFound = errors.New("not found")
