package rankup

import "errors"

var (
	// ErrPlayerNotFound is reported with Failure when the player has no record.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrRefundFailed is reported when a debit could not be returned.
	ErrRefundFailed = errors.New("refund failed")
)
