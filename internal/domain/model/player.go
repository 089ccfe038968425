package model

import (
	"maps"

	"github.com/google/uuid"
)

// Player holds at most one rank id per ladder, keyed by ladder name.
// A ladder missing from Ranks means the player is unranked on it.
type Player struct {
	UID   uuid.UUID      `json:"uid"`
	Ranks map[string]int `json:"ranks"`
}

// NewPlayer builds a player with no ranks.
func NewPlayer(uid uuid.UUID) *Player {
	return &Player{UID: uid, Ranks: make(map[string]int)}
}

// SetRank records rankID as the player's rank on ladder, replacing any previous one.
func (p *Player) SetRank(ladder string, rankID int) {
	if p.Ranks == nil {
		p.Ranks = make(map[string]int)
	}
	p.Ranks[NormalizeLadderName(ladder)] = rankID
}

// RankID returns the rank id held on ladder.
func (p *Player) RankID(ladder string) (int, bool) {
	id, ok := p.Ranks[NormalizeLadderName(ladder)]
	return id, ok
}

// RemoveRankID clears every ladder entry holding rankID and returns the ladders touched.
func (p *Player) RemoveRankID(rankID int) []string {
	var ladders []string
	for name, id := range p.Ranks {
		if id == rankID {
			ladders = append(ladders, name)
			delete(p.Ranks, name)
		}
	}
	return ladders
}

// RemoveLadder forgets the player's rank on ladder. The default ladder is kept.
func (p *Player) RemoveLadder(ladder string) bool {
	ladder = NormalizeLadderName(ladder)
	if ladder == DefaultLadder {
		return false
	}
	if _, ok := p.Ranks[ladder]; !ok {
		return false
	}
	delete(p.Ranks, ladder)
	return true
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	c := &Player{UID: p.UID, Ranks: maps.Clone(p.Ranks)}
	if c.Ranks == nil {
		c.Ranks = make(map[string]int)
	}
	return c
}
