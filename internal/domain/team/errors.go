package team

import "errors"

// Sentinel kinds for team errors.
var (
	ErrUnknownTeam = errors.New("unknown team")
)
