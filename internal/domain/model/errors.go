package model

import "errors"

var (
	// ErrNegativeCost is returned when a rank is given a cost below zero.
	ErrNegativeCost = errors.New("rank cost must not be negative")
	// ErrEmptyName is returned when a rank or ladder name is blank.
	ErrEmptyName = errors.New("name must not be empty")
	// ErrInvalidPosition is returned for positions below zero.
	ErrInvalidPosition = errors.New("position must not be negative")
	// ErrPositionNotOccupied is returned when removing from an empty slot.
	ErrPositionNotOccupied = errors.New("position is not occupied")
	// ErrDuplicateRank is returned when a rank is already on the ladder.
	ErrDuplicateRank = errors.New("rank already on ladder")
)
