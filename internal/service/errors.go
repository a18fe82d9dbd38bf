package service

import "errors"

// Recoverable domain errors. The handler maps each to a user-facing
// message; none of them leaves in-memory state inconsistent.
var (
	ErrOutsideShiftWindow    = errors.New("timestamp outside every shift window for role")
	ErrDuplicateCheckIn      = errors.New("user is already checked in")
	ErrNotCheckedIn          = errors.New("user is not checked in")
	ErrActivityAlreadyActive = errors.New("an activity is already in progress")
	ErrQuotaExceeded         = errors.New("activity quota exhausted for this shift")
	ErrNoActiveActivity      = errors.New("no activity in progress")
	ErrPersistence           = errors.New("persistence unavailable")
)
