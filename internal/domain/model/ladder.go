package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DefaultLadder is the ladder every player progresses on unless told otherwise.
const DefaultLadder = "default"

// PositionRank places a rank id at a position of a ladder.
type PositionRank struct {
	Position int `json:"position"`
	RankID   int `json:"rankId"`
}

// Ladder is an ordered progression of rank ids.
// Entries are kept sorted by position and no two entries share a position
// or a rank id.
type Ladder struct {
	ID      int
	Name    string
	entries []PositionRank
}

// NormalizeLadderName lower-cases and trims a ladder name.
func NormalizeLadderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewLadder builds an empty ladder.
func NewLadder(id int, name string) (*Ladder, error) {
	name = NormalizeLadderName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return &Ladder{ID: id, Name: name}, nil
}

// Add places rankID on the ladder and returns the position it landed on.
// A nil position appends after the highest occupied position. An occupied
// position shifts the occupant and every later entry up by one.
func (l *Ladder) Add(rankID int, position *int) (int, error) {
	if l.Contains(rankID) {
		return 0, fmt.Errorf("%w: rank %d on %s", ErrDuplicateRank, rankID, l.Name)
	}

	if position == nil {
		p := 0
		if n := len(l.entries); n > 0 {
			p = l.entries[n-1].Position + 1
		}
		l.entries = append(l.entries, PositionRank{Position: p, RankID: rankID})
		return p, nil
	}

	p := *position
	if p < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPosition, p)
	}
	i := l.search(p)
	if i < len(l.entries) && l.entries[i].Position == p {
		for j := i; j < len(l.entries); j++ {
			l.entries[j].Position++
		}
	}
	l.entries = slices.Insert(l.entries, i, PositionRank{Position: p, RankID: rankID})
	return p, nil
}

// RemoveAt drops the entry at position and compacts later positions down by one.
func (l *Ladder) RemoveAt(position int) (int, error) {
	i := l.search(position)
	if position < 0 || i >= len(l.entries) || l.entries[i].Position != position {
		return 0, fmt.Errorf("%w: %d on %s", ErrPositionNotOccupied, position, l.Name)
	}
	removed := l.entries[i].RankID
	l.entries = slices.Delete(l.entries, i, i+1)
	for j := i; j < len(l.entries); j++ {
		l.entries[j].Position--
	}
	return removed, nil
}

// Next returns the first entry strictly above position.
func (l *Ladder) Next(position int) (PositionRank, bool) {
	i := l.search(position + 1)
	if i >= len(l.entries) {
		return PositionRank{}, false
	}
	return l.entries[i], true
}

// Previous returns the last entry strictly below position.
func (l *Ladder) Previous(position int) (PositionRank, bool) {
	i := l.search(position)
	if i == 0 {
		return PositionRank{}, false
	}
	return l.entries[i-1], true
}

// At returns the rank id stored at position.
func (l *Ladder) At(position int) (int, bool) {
	i := l.search(position)
	if i < len(l.entries) && l.entries[i].Position == position {
		return l.entries[i].RankID, true
	}
	return 0, false
}

// Contains reports whether rankID is on the ladder.
func (l *Ladder) Contains(rankID int) bool {
	return l.PositionOf(rankID) >= 0
}

// PositionOf returns the position of rankID or -1.
func (l *Ladder) PositionOf(rankID int) int {
	for _, e := range l.entries {
		if e.RankID == rankID {
			return e.Position
		}
	}
	return -1
}

// Lowest returns the entry with the smallest position.
func (l *Ladder) Lowest() (PositionRank, bool) {
	if len(l.entries) == 0 {
		return PositionRank{}, false
	}
	return l.entries[0], true
}

// Entries returns a copy of the entries in position order.
func (l *Ladder) Entries() []PositionRank {
	return slices.Clone(l.entries)
}

// Size returns the number of ranks on the ladder.
func (l *Ladder) Size() int {
	return len(l.entries)
}

// Clone returns a deep copy.
func (l *Ladder) Clone() *Ladder {
	return &Ladder{ID: l.ID, Name: l.Name, entries: slices.Clone(l.entries)}
}

// search returns the index of the first entry whose position is >= p.
func (l *Ladder) search(p int) int {
	i, _ := slices.BinarySearchFunc(l.entries, p, func(e PositionRank, t int) int {
		return e.Position - t
	})
	return i
}

type ladderJSON struct {
	ID    int            `json:"id"`
	Name  string         `json:"name"`
	Ranks []PositionRank `json:"ranks"`
}

// MarshalJSON implements json.Marshaler.
func (l *Ladder) MarshalJSON() ([]byte, error) {
	ranks := l.entries
	if ranks == nil {
		ranks = []PositionRank{}
	}
	return json.Marshal(ladderJSON{ID: l.ID, Name: l.Name, Ranks: ranks})
}

// UnmarshalJSON implements json.Unmarshaler. Stored entries are sorted and
// later duplicates of a position or rank id are dropped.
func (l *Ladder) UnmarshalJSON(b []byte) error {
	var raw ladderJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	slices.SortStableFunc(raw.Ranks, func(a, b PositionRank) int { return a.Position - b.Position })

	l.ID = raw.ID
	l.Name = NormalizeLadderName(raw.Name)
	l.entries = make([]PositionRank, 0, len(raw.Ranks))
	seen := make(map[int]struct{}, len(raw.Ranks))
	for _, e := range raw.Ranks {
		if e.Position < 0 {
			continue
		}
		if _, dup := seen[e.RankID]; dup {
			continue
		}
		if n := len(l.entries); n > 0 && l.entries[n-1].Position == e.Position {
			continue
		}
		seen[e.RankID] = struct{}{}
		l.entries = append(l.entries, e)
	}
	return nil
}
