package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
)

// NoRank stands for "no current rank" in NextAfter.
const NoRank = -1

// Step is a ladder entry resolved to a live rank.
type Step struct {
	Position int
	Rank     *model.Rank
}

// Ladders owns every Ladder and its position map. Rank ids that no longer
// resolve through the rank registry are skipped when walking a ladder.
type Ladders struct {
	mu     sync.RWMutex
	store  storage.Store
	ranks  *Ranks
	log    logger.Logger
	byName map[string]*model.Ladder
	order  []string
	nextID int
}

// NewLadders creates an empty ladder registry resolving ids through ranks.
func NewLadders(store storage.Store, ranks *Ranks, opts ...Option) *Ladders {
	o := newOptions(opts)
	return &Ladders{
		store:  store,
		ranks:  ranks,
		log:    o.log,
		byName: make(map[string]*model.Ladder),
	}
}

// Load replaces the registry contents with the stored ladders, ordered by id.
func (l *Ladders) Load(ctx context.Context) error {
	ladders, err := storage.LoadAll(ctx, l.store, storage.KindLadder, func() *model.Ladder { return &model.Ladder{} })
	if err != nil {
		return fmt.Errorf("load ladders: %w", err)
	}
	slices.SortFunc(ladders, func(a, b *model.Ladder) int { return a.ID - b.ID })

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byName = make(map[string]*model.Ladder, len(ladders))
	l.order = l.order[:0]
	for _, ld := range ladders {
		if _, dup := l.byName[ld.Name]; dup || ld.Name == "" {
			l.log.Warn(ctx, "skipping stored ladder", logger.String("name", ld.Name), logger.Int("id", ld.ID))
			continue
		}
		l.insert(ld)
	}
	metrics.UpdateLadders(len(l.byName))
	return nil
}

func (l *Ladders) insert(ld *model.Ladder) {
	l.byName[ld.Name] = ld
	l.order = append(l.order, ld.Name)
	if ld.ID >= l.nextID {
		l.nextID = ld.ID + 1
	}
}

// Create adds an empty ladder. Names are lower-cased.
func (l *Ladders) Create(ctx context.Context, name string) (*model.Ladder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createLocked(ctx, name)
}

func (l *Ladders) createLocked(ctx context.Context, name string) (*model.Ladder, error) {
	ld, err := model.NewLadder(l.nextID, name)
	if err != nil {
		return nil, err
	}
	if _, exists := l.byName[ld.Name]; exists {
		return nil, fmt.Errorf("%w: ladder %q", ErrDuplicateName, ld.Name)
	}
	if err := l.save(ctx, ld); err != nil {
		return nil, err
	}
	l.insert(ld)
	metrics.UpdateLadders(len(l.byName))
	l.log.Info(ctx, "ladder created", logger.String("name", ld.Name), logger.Int("id", ld.ID))
	return ld.Clone(), nil
}

// EnsureDefault creates the default ladder if it is missing.
func (l *Ladders) EnsureDefault(ctx context.Context) (*model.Ladder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ld, ok := l.byName[model.DefaultLadder]; ok {
		return ld.Clone(), nil
	}
	return l.createLocked(ctx, model.DefaultLadder)
}

func (l *Ladders) save(ctx context.Context, ld *model.Ladder) error {
	if err := storage.Put(ctx, l.store, storage.KindLadder, storage.LadderKey(ld.ID), ld); err != nil {
		return fmt.Errorf("save ladder %q: %w", ld.Name, err)
	}
	return nil
}

func (l *Ladders) lookup(name string) (*model.Ladder, error) {
	ld, ok := l.byName[model.NormalizeLadderName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: ladder %q", ErrNotFound, name)
	}
	return ld, nil
}

// Get looks a ladder up by name, case-insensitively.
func (l *Ladders) Get(name string) (*model.Ladder, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ld, err := l.lookup(name)
	if err != nil {
		return nil, false
	}
	return ld.Clone(), true
}

// GetByID looks a ladder up by id.
func (l *Ladders) GetByID(id int) (*model.Ladder, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ld := range l.byName {
		if ld.ID == id {
			return ld.Clone(), true
		}
	}
	return nil, false
}

// List returns every ladder in creation order.
func (l *Ladders) List() []*model.Ladder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*model.Ladder, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.byName[name].Clone())
	}
	return out
}

// Len returns the number of ladders.
func (l *Ladders) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byName)
}

// mutate applies fn to a copy of the ladder, persists the copy and commits it.
func (l *Ladders) mutate(ctx context.Context, name string, fn func(*model.Ladder) error) error {
	cur, err := l.lookup(name)
	if err != nil {
		return err
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := l.save(ctx, next); err != nil {
		return err
	}
	l.byName[next.Name] = next
	return nil
}

// AddRank places rankID on the ladder and returns its position. A nil
// position appends; an occupied position shifts later entries up.
func (l *Ladders) AddRank(ctx context.Context, ladder string, rankID int, position *int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ranks.Exists(rankID) {
		return 0, fmt.Errorf("%w: rank %d", ErrNotFound, rankID)
	}

	var placed int
	err := l.mutate(ctx, ladder, func(ld *model.Ladder) error {
		p, err := ld.Add(rankID, position)
		placed = p
		return err
	})
	if err != nil {
		return 0, err
	}
	op := "append"
	if position != nil {
		op = "insert"
	}
	metrics.RecordLadderOp(op)
	return placed, nil
}

// RemoveRank drops the entry at position and compacts the ladder. It returns
// the removed rank id.
func (l *Ladders) RemoveRank(ctx context.Context, ladder string, position int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int
	err := l.mutate(ctx, ladder, func(ld *model.Ladder) error {
		id, err := ld.RemoveAt(position)
		if errors.Is(err, model.ErrPositionNotOccupied) {
			return fmt.Errorf("%w: %w", ErrPositionOutOfRange, err)
		}
		removed = id
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordLadderOp("remove")
	return removed, nil
}

// RemoveRankEverywhere removes rankID from every ladder holding it and
// returns the names of the ladders that changed.
func (l *Ladders) RemoveRankEverywhere(ctx context.Context, rankID int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeEverywhereLocked(ctx, rankID)
}

// DeleteRank removes rankID from every ladder and then from the rank
// registry without releasing the ladder lock, so no concurrent AddRank can
// place the id in between.
func (l *Ladders) DeleteRank(ctx context.Context, rankID int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	touched, err := l.removeEverywhereLocked(ctx, rankID)
	if err != nil {
		return touched, err
	}
	return touched, l.ranks.Remove(ctx, rankID)
}

func (l *Ladders) removeEverywhereLocked(ctx context.Context, rankID int) ([]string, error) {
	var touched []string
	for _, name := range l.order {
		p := l.byName[name].PositionOf(rankID)
		if p < 0 {
			continue
		}
		if err := l.mutate(ctx, name, func(ld *model.Ladder) error {
			_, err := ld.RemoveAt(p)
			return err
		}); err != nil {
			return touched, err
		}
		metrics.RecordLadderOp("remove")
		touched = append(touched, name)
	}
	return touched, nil
}

// walk applies step from position until an entry resolves to a
// live rank.
func (l *Ladders) walk(name string, position int, step func(*model.Ladder, int) (model.PositionRank, bool)) (Step, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ld, err := l.lookup(name)
	if err != nil {
		return Step{}, false, err
	}
	next, ok := l.walkLocked(ld, position, step)
	return next, ok, nil
}

func (l *Ladders) walkLocked(ld *model.Ladder, position int, step func(*model.Ladder, int) (model.PositionRank, bool)) (Step, bool) {
	for {
		e, ok := step(ld, position)
		if !ok {
			return Step{}, false
		}
		if rk, ok := l.ranks.GetByID(e.RankID); ok {
			return Step{Position: e.Position, Rank: rk}, true
		}
		position = e.Position
	}
}

// Next returns the first live rank strictly above position. Position -1
// yields the lowest live rank.
func (l *Ladders) Next(ladder string, position int) (Step, bool, error) {
	return l.walk(ladder, position, (*model.Ladder).Next)
}

// Previous returns the last live rank strictly below position.
func (l *Ladders) Previous(ladder string, position int) (Step, bool, error) {
	return l.walk(ladder, position, (*model.Ladder).Previous)
}

// Ascent is the rank above a player's current one, read in one pass.
type Ascent struct {
	Next Step
	// Found is false when nothing live is above the current rank.
	Found bool
	// Size is the number of entries on the ladder, dangling ones included.
	Size int
}

// NextAfter finds the first live rank above rankID on the ladder. The
// position lookup and the walk happen under one read lock, so a concurrent
// insert or removal cannot shift positions in between. A rankID that is not
// on the ladder, such as NoRank, starts from the bottom.
func (l *Ladders) NextAfter(ladder string, rankID int) (Ascent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ld, err := l.lookup(ladder)
	if err != nil {
		return Ascent{}, err
	}
	next, ok := l.walkLocked(ld, ld.PositionOf(rankID), (*model.Ladder).Next)
	return Ascent{Next: next, Found: ok, Size: ld.Size()}, nil
}

// Contains reports whether the ladder holds rankID.
func (l *Ladders) Contains(ladder string, rankID int) bool {
	return l.PositionOf(ladder, rankID) >= 0
}

// PositionOf returns the position of rankID on the ladder, or -1.
func (l *Ladders) PositionOf(ladder string, rankID int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ld, err := l.lookup(ladder)
	if err != nil {
		return -1
	}
	return ld.PositionOf(rankID)
}

// WithRank returns every ladder holding rankID.
func (l *Ladders) WithRank(rankID int) []*model.Ladder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*model.Ladder
	for _, name := range l.order {
		if ld := l.byName[name]; ld.Contains(rankID) {
			out = append(out, ld.Clone())
		}
	}
	return out
}

// Remove deletes the ladder. Players keep their entry for it.
func (l *Ladders) Remove(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ld, err := l.lookup(name)
	if err != nil {
		return err
	}
	if err := l.store.Delete(ctx, storage.LadderKey(ld.ID)); err != nil {
		return fmt.Errorf("delete ladder %q: %w", ld.Name, err)
	}
	delete(l.byName, ld.Name)
	l.order = slices.DeleteFunc(l.order, func(n string) bool { return n == ld.Name })
	metrics.UpdateLadders(len(l.byName))
	l.log.Info(ctx, "ladder removed", logger.String("name", ld.Name))
	return nil
}
