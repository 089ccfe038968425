package economy

import "errors"

var (
	// ErrInsufficientFunds is returned by Withdraw when the balance is too low.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")
)
