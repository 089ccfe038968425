package command

import "errors"

var (
	// ErrUnknownCommand is returned when no table entry matches the input.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when arguments are missing, extra or malformed.
	ErrUsage = errors.New("usage")
	// ErrPlayerOnly is returned when the console runs a command that needs a player.
	ErrPlayerOnly = errors.New("command can only be run by a player")
	// ErrPermission is returned when the sender lacks every permission the command accepts.
	ErrPermission = errors.New("permission denied")
)
