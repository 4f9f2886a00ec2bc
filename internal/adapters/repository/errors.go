package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound = errors.New("catalog entry not found")
)
