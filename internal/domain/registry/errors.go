package registry

import (
	"errors"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
)

var (
	// ErrNotFound is returned when a rank, ladder or player is absent.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when creating a rank or ladder whose name is taken.
	ErrDuplicateName = errors.New("name already exists")
	// ErrRankNotOnLadder is returned when assigning a rank the ladder does not hold.
	ErrRankNotOnLadder = errors.New("rank is not on ladder")
	// ErrPositionOutOfRange is returned when removing a position that is not occupied.
	ErrPositionOutOfRange = errors.New("position out of range")
	// ErrImmutableIdentity is returned when an update changes a rank's id or name.
	ErrImmutableIdentity = errors.New("rank id and name cannot change")

	// ErrDuplicateRank is returned when a rank is added twice to one ladder.
	ErrDuplicateRank = model.ErrDuplicateRank
	// ErrPersistence wraps store failures. In-memory state is unchanged when it is returned.
	ErrPersistence = storage.ErrPersistence
)
