package repository

import "errors"

// Sentinel kinds for score store errors.
var (
	ErrNoEvents         = errors.New("no score events")
	ErrDuplicateID      = errors.New("duplicate event id")
	ErrStoreUnavailable = errors.New("score store unavailable")
	ErrClosed           = errors.New("score store closed")
)
