package service

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrLastDefaultRank is returned when deleting the only rank of the default ladder.
	ErrLastDefaultRank = errors.New("rank is the only rank in the default ladder")
	// ErrDefaultLadder is returned when deleting the default ladder.
	ErrDefaultLadder = errors.New("the default ladder cannot be deleted")
	// ErrDuplicateRequest is returned when a rank-up request id was already handled.
	ErrDuplicateRequest = errors.New("duplicate rank-up request")
	// ErrNoSuchCommand is returned when removing a command the rank does not hold.
	ErrNoSuchCommand = errors.New("rank does not contain that command")
)
