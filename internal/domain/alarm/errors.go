package alarm

import "errors"

var (
	// ErrUnknownSeverity is returned when a severity label cannot be parsed.
	ErrUnknownSeverity = errors.New("unknown severity")
	// ErrUnknownType is returned when an alarm type label cannot be parsed.
	ErrUnknownType = errors.New("unknown alarm type")
	// ErrMissingReductionKey is returned when a decoded alarm has no reduction key.
	ErrMissingReductionKey = errors.New("reduction key is required")
)
