package errors

import "errors"

var (
	// ErrAlreadyRecorded means a notification for the event already exists.
	// Redelivered events hit it and are treated as done.
	ErrAlreadyRecorded = errors.New("notification already recorded for event")
)
