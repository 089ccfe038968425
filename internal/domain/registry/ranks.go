package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Ranks owns every Rank. Callers receive copies; changes go through Update.
type Ranks struct {
	mu     sync.RWMutex
	store  storage.Store
	log    logger.Logger
	byID   map[int]*model.Rank
	byName map[string]int
	order  []int
	nextID int
}

// NewRanks creates an empty rank registry.
func NewRanks(store storage.Store, opts ...Option) *Ranks {
	o := newOptions(opts)
	return &Ranks{
		store:  store,
		log:    o.log,
		byID:   make(map[int]*model.Rank),
		byName: make(map[string]int),
	}
}

// Load replaces the registry contents with the stored ranks, ordered by id.
func (r *Ranks) Load(ctx context.Context) error {
	ranks, err := storage.LoadAll(ctx, r.store, storage.KindRank, func() *model.Rank { return &model.Rank{} })
	if err != nil {
		return fmt.Errorf("load ranks: %w", err)
	}
	slices.SortFunc(ranks, func(a, b *model.Rank) int { return a.ID - b.ID })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[int]*model.Rank, len(ranks))
	r.byName = make(map[string]int, len(ranks))
	r.order = r.order[:0]
	for _, rk := range ranks {
		if _, dup := r.byName[rk.Name]; dup {
			r.log.Warn(ctx, "skipping stored rank with duplicate name",
				logger.String("name", rk.Name), logger.Int("id", rk.ID))
			continue
		}
		if rk.Commands == nil {
			rk.Commands = []string{}
		}
		r.insert(rk)
	}
	metrics.UpdateRanks(len(r.byID))
	return nil
}

func (r *Ranks) insert(rk *model.Rank) {
	r.byID[rk.ID] = rk
	r.byName[rk.Name] = rk.ID
	r.order = append(r.order, rk.ID)
	if rk.ID >= r.nextID {
		r.nextID = rk.ID + 1
	}
}

// Create adds a rank with the next free id. Name uniqueness is checked
// under the registry lock.
func (r *Ranks) Create(ctx context.Context, name, tag string, cost decimal.Decimal) (*model.Rank, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("%w: rank %q", ErrDuplicateName, name)
	}
	rk, err := model.NewRank(r.nextID, name, tag, cost)
	if err != nil {
		return nil, err
	}
	if err := storage.Put(ctx, r.store, storage.KindRank, storage.RankKey(rk.ID), rk); err != nil {
		return nil, fmt.Errorf("save rank %q: %w", name, err)
	}
	r.insert(rk)
	metrics.UpdateRanks(len(r.byID))
	r.log.Info(ctx, "rank created", logger.String("name", name), logger.Int("id", rk.ID))
	return rk.Clone(), nil
}

// Get looks a rank up by exact, case-sensitive name.
func (r *Ranks) Get(name string) (*model.Rank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.byID[id].Clone(), true
}

// GetByID looks a rank up by id.
func (r *Ranks) GetByID(id int) (*model.Rank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rk, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return rk.Clone(), true
}

// Exists reports whether id resolves to a live rank.
func (r *Ranks) Exists(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// List returns every rank in insertion order.
func (r *Ranks) List() []*model.Rank {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Rank, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

// Len returns the number of ranks.
func (r *Ranks) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Update applies fn to a copy of the rank, persists it and then commits it.
func (r *Ranks) Update(ctx context.Context, id int, fn func(*model.Rank) error) (*model.Rank, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: rank %d", ErrNotFound, id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.ID != cur.ID || next.Name != cur.Name {
		return nil, ErrImmutableIdentity
	}
	if err := storage.Put(ctx, r.store, storage.KindRank, storage.RankKey(id), next); err != nil {
		return nil, fmt.Errorf("save rank %q: %w", cur.Name, err)
	}
	r.byID[id] = next
	return next.Clone(), nil
}

// Remove deletes the rank record and drops it from the registry.
// Ladders and players still referring to the id are left alone.
func (r *Ranks) Remove(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rk, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: rank %d", ErrNotFound, id)
	}
	if err := r.store.Delete(ctx, storage.RankKey(id)); err != nil {
		return fmt.Errorf("delete rank %q: %w", rk.Name, err)
	}
	delete(r.byID, id)
	delete(r.byName, rk.Name)
	r.order = slices.DeleteFunc(r.order, func(v int) bool { return v == id })
	metrics.UpdateRanks(len(r.byID))
	r.log.Info(ctx, "rank removed", logger.String("name", rk.Name), logger.Int("id", id))
	return nil
}
