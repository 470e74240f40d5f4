package storage

import "errors"

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("not found")
