package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrBadDayKey    = errors.New("invalid day key")
	ErrInvalidEvent = errors.New("invalid score event")
)
