package ledger

import "errors"

// Sentinel kinds for ledger validation errors.
var (
	ErrRatingRange = errors.New("rating out of range")
	ErrKarmaRange  = errors.New("karma out of range")
)
