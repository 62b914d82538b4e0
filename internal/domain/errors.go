package domain

import "errors"

// Request and batch level failures propagate to callers; file level
// failures are absorbed by the reader and merger and only logged.
var (
	ErrDirectoryUnavailable   = errors.New("partition directory unavailable")
	ErrInvalidInterval        = errors.New("invalid interval")
	ErrMissingReferenceDate   = errors.New("reference date not provided")
	ErrInvalidReferenceDate   = errors.New("invalid reference date")
	ErrStationFileUnreadable  = errors.New("station file unreadable")
	ErrStationFileUnparseable = errors.New("station file unparseable")
	ErrInventoryUnavailable   = errors.New("station inventory unavailable")
)
