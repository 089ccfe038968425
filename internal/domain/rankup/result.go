package rankup

import (
	"fmt"

	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Status is the outcome of a rank-up attempt. It is a result callers branch
// on, not an error.
type Status int

// Rank-up outcomes.
const (
	Success Status = iota
	CantAfford
	Highest
	NoRanks
	NoSuchLadder
	Failure
)

var statusNames = [...]string{
	Success:      "success",
	CantAfford:   "cant_afford",
	Highest:      "highest",
	NoRanks:      "no_ranks",
	NoSuchLadder: "no_such_ladder",
	Failure:      "failure",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result describes a finished rank-up attempt.
type Result struct {
	Status Status
	Ladder string
	// Rank is the rank reached on Success, or the rank that could not be
	// afforded on CantAfford.
	Rank *model.Rank
	// Previous is the rank held before the attempt, nil when unranked.
	Previous *model.Rank
	Cost     decimal.Decimal
	Balance  decimal.Decimal
	// Refunded is set when a debit was returned after the promotion failed.
	Refunded bool
	Err      error
	// CommandsDropped counts the rank's commands that could not be queued
	// after a Success. The promotion stands; DispatchErr says why.
	CommandsDropped int
	DispatchErr     error
}
