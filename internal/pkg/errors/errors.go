package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoChapterAvailable means the current cycle has no free chapter:
	// everything is either completed or actively held. Not an error for
	// the participant, just a terminal claim state.
	ErrNoChapterAvailable = errors.New("no chapter available")
	// ErrNotHolder means the caller tried to act on an assignment it does
	// not currently hold.
	ErrNotHolder = errors.New("caller is not the assignment holder")
)
