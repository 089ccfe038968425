package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/google/uuid"
)

// Players owns every player record.
type Players struct {
	mu       sync.RWMutex
	store    storage.Store
	ranks    *Ranks
	ladders  *Ladders
	log      logger.Logger
	notifier JoinNotifier
	byUID    map[uuid.UUID]*model.Player
}

// NewPlayers creates an empty player registry.
func NewPlayers(store storage.Store, ranks *Ranks, ladders *Ladders, opts ...Option) *Players {
	o := newOptions(opts)
	return &Players{
		store:    store,
		ranks:    ranks,
		ladders:  ladders,
		log:      o.log,
		notifier: o.notifier,
		byUID:    make(map[uuid.UUID]*model.Player),
	}
}

// Load replaces the registry contents with the stored players.
func (p *Players) Load(ctx context.Context) error {
	players, err := storage.LoadAll(ctx, p.store, storage.KindPlayer, func() *model.Player { return &model.Player{} })
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUID = make(map[uuid.UUID]*model.Player, len(players))
	for _, pl := range players {
		// re-key through SetRank so ladder names are normalized
		ranks := pl.Ranks
		pl.Ranks = make(map[string]int, len(ranks))
		for ladder, id := range ranks {
			pl.SetRank(ladder, id)
		}
		p.byUID[pl.UID] = pl
	}
	metrics.UpdatePlayers(len(p.byUID))
	return nil
}

func (p *Players) save(ctx context.Context, pl *model.Player) error {
	if err := storage.Put(ctx, p.store, storage.KindPlayer, storage.PlayerKey(pl.UID), pl); err != nil {
		return fmt.Errorf("save player %s: %w", pl.UID, err)
	}
	return nil
}

// Get returns a copy of the player record.
func (p *Players) Get(uid uuid.UUID) (*model.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pl, ok := p.byUID[uid]
	if !ok {
		return nil, false
	}
	return pl.Clone(), true
}

// CreateIfAbsent returns the player, creating and persisting an empty record
// on first sight. created is true only for the call that made the record.
func (p *Players) CreateIfAbsent(ctx context.Context, uid uuid.UUID) (*model.Player, bool, error) {
	p.mu.Lock()
	if pl, ok := p.byUID[uid]; ok {
		p.mu.Unlock()
		return pl.Clone(), false, nil
	}
	pl := model.NewPlayer(uid)
	if err := p.save(ctx, pl); err != nil {
		p.mu.Unlock()
		return nil, false, err
	}
	p.byUID[uid] = pl
	n := len(p.byUID)
	p.mu.Unlock()

	metrics.UpdatePlayers(n)
	metrics.RecordFirstJoin()
	p.log.Info(ctx, "player first join", logger.String("uid", uid.String()))
	p.notifier.FirstJoin(ctx, uid)
	return pl.Clone(), true, nil
}

// mutate applies fn to a copy of the player, persists the copy and commits it.
func (p *Players) mutate(ctx context.Context, uid uuid.UUID, fn func(*model.Player) error) error {
	cur, ok := p.byUID[uid]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, uid)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := p.save(ctx, next); err != nil {
		return err
	}
	p.byUID[uid] = next
	return nil
}

// AddRank sets the player's rank on ladder, replacing any rank held there.
// The rank must be on the ladder. The record is persisted before the
// in-memory player changes.
func (p *Players) AddRank(ctx context.Context, uid uuid.UUID, ladder string, rankID int) error {
	if _, ok := p.ladders.Get(ladder); !ok {
		return fmt.Errorf("%w: ladder %q", ErrNotFound, ladder)
	}
	if !p.ladders.Contains(ladder, rankID) {
		return fmt.Errorf("%w: rank %d on %q", ErrRankNotOnLadder, rankID, ladder)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutate(ctx, uid, func(pl *model.Player) error {
		pl.SetRank(ladder, rankID)
		return nil
	})
}

// RemoveRank clears every ladder entry of the player that holds rankID.
func (p *Players) RemoveRank(ctx context.Context, uid uuid.UUID, rankID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutate(ctx, uid, func(pl *model.Player) error {
		pl.RemoveRankID(rankID)
		return nil
	})
}

// RemoveLadder forgets the player's rank on ladder. The default ladder entry is kept.
func (p *Players) RemoveLadder(ctx context.Context, uid uuid.UUID, ladder string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutate(ctx, uid, func(pl *model.Player) error {
		pl.RemoveLadder(ladder)
		return nil
	})
}

// ReplaceRank rewrites every player holding rankID. For each ladder entry
// holding it, replacement returns the rank id to move to, or false to leave
// the player unranked there. It returns how many players changed.
func (p *Players) ReplaceRank(ctx context.Context, rankID int, replacement func(ladder string) (int, bool)) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := 0
	for uid, pl := range p.byUID {
		var ladders []string
		for ladder, id := range pl.Ranks {
			if id == rankID {
				ladders = append(ladders, ladder)
			}
		}
		if len(ladders) == 0 {
			continue
		}
		err := p.mutate(ctx, uid, func(next *model.Player) error {
			for _, ladder := range ladders {
				delete(next.Ranks, ladder)
				if to, ok := replacement(ladder); ok {
					next.SetRank(ladder, to)
				}
			}
			return nil
		})
		if err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// RankOn resolves the player's rank on ladder. Unranked players and ids
// that no longer resolve yield false.
func (p *Players) RankOn(uid uuid.UUID, ladder string) (*model.Rank, bool) {
	p.mu.RLock()
	pl, ok := p.byUID[uid]
	var id int
	if ok {
		id, ok = pl.RankID(ladder)
	}
	p.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.ranks.GetByID(id)
}

// Ranks resolves every ladder entry of the player, skipping dangling ids.
func (p *Players) Ranks(uid uuid.UUID) map[string]*model.Rank {
	pl, ok := p.Get(uid)
	if !ok {
		return nil
	}
	out := make(map[string]*model.Rank, len(pl.Ranks))
	for ladder, id := range pl.Ranks {
		if rk, ok := p.ranks.GetByID(id); ok {
			out[ladder] = rk
		}
	}
	return out
}

// List returns copies of every player record.
func (p *Players) List() []*model.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*model.Player, 0, len(p.byUID))
	for _, pl := range p.byUID {
		out = append(out, pl.Clone())
	}
	return out
}

// WithRank returns every player holding rankID on some ladder.
func (p *Players) WithRank(rankID int) []*model.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*model.Player
	for _, pl := range p.byUID {
		for _, id := range pl.Ranks {
			if id == rankID {
				out = append(out, pl.Clone())
				break
			}
		}
	}
	return out
}

// Len returns the number of players.
func (p *Players) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUID)
}
