package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("moderator access required")
	ErrShortQuery   = errors.New("query must be at least 3 characters")
	ErrNoResults    = errors.New("nothing matched the query")
)
