package config

import "errors"

// Sentinel errors so callers can tell a bad value from a failed load.
var (
	// ErrInvalidConfig marks settings that fail validation.
	ErrInvalidConfig = errors.New("invalid derby config")

	// ErrLoadConfig marks file or environment loading failures.
	ErrLoadConfig = errors.New("load derby config failed")
)
