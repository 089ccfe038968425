// Package service wires the rank registries, the economy, the rank-up engine
// and the command dispatch pipeline into one component used by the HTTP API
// and the command table.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/economy"
	cmdqueue "github.com/MC-Prison/PrisonRanks/internal/adapters/mq/queue"
	cmdworker "github.com/MC-Prison/PrisonRanks/internal/adapters/mq/worker"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/notify"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/MC-Prison/PrisonRanks/internal/domain/dedupe"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/MC-Prison/PrisonRanks/internal/domain/rankup"
	"github.com/MC-Prison/PrisonRanks/internal/domain/registry"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service owns every rank component. Operations fail with ErrNotStarted
// until Start has loaded the persisted state.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    storage.Store
	ranks    *registry.Ranks
	ladders  *registry.Ladders
	players  *registry.Players
	ledger   *economy.Ledger
	events   *notify.Broadcaster
	queue    *cmdqueue.InMemoryQueue
	pool     *cmdworker.Pool
	engine   *rankup.Engine
	deduper  dedupe.Deduper
	executor cmdworker.Executor

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	startingBalance decimal.Decimal

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistent store. The caller keeps ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of rank-up command executors.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the command queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many rank-up request ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStartingBalance sets the balance credited on a player's first join.
func WithStartingBalance(amount decimal.Decimal) Option {
	return func(s *Service) {
		if !amount.IsNegative() {
			s.startingBalance = amount
		}
	}
}

// WithExecutor sets what runs rank-up commands. The default logs them.
func WithExecutor(exec cmdworker.Executor) Option {
	return func(s *Service) {
		if exec != nil {
			s.executor = exec
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      50_000,
		startingBalance: decimal.Zero,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads ranks, ladders, players and balances from the store, makes
// sure the default ladder exists and starts the command workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = storage.NewMemStore()
	}
	if s.executor == nil {
		s.executor = cmdworker.LogExecutor{Logger: s.logger.Named("executor")}
	}

	s.logger.Info(ctx, "starting ranks service...")

	s.events = notify.NewBroadcaster(s.logger)
	regOpts := []registry.Option{
		registry.WithLogger(s.logger),
		registry.WithJoinNotifier(s.events),
	}
	s.ranks = registry.NewRanks(s.store, regOpts...)
	s.ladders = registry.NewLadders(s.store, s.ranks, regOpts...)
	s.players = registry.NewPlayers(s.store, s.ranks, s.ladders, regOpts...)
	s.ledger = economy.NewLedger(s.store)

	if err := s.ranks.Load(ctx); err != nil {
		return fmt.Errorf("load ranks: %w", err)
	}
	if err := s.ladders.Load(ctx); err != nil {
		return fmt.Errorf("load ladders: %w", err)
	}
	if err := s.players.Load(ctx); err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	if err := s.ledger.Load(ctx); err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	if _, err := s.ladders.EnsureDefault(ctx); err != nil {
		return fmt.Errorf("default ladder: %w", err)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = cmdqueue.NewInMemoryQueue(
		cmdqueue.WithCapacity(s.queueSize),
		cmdqueue.WithShards(s.workerCount),
	)
	s.pool = cmdworker.NewPool(s.queue, s.executor, s.logger)

	// Workers outlive the caller's start context and stop with Stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.engine = rankup.NewEngine(s.ladders, s.players, s.ledger,
		rankup.WithDispatcher(s.queue),
		rankup.WithAnnouncer(s.events),
		rankup.WithLogger(s.logger.Named("rankup")),
	)

	s.started = true
	s.logger.Info(ctx, "ranks service started",
		logger.Int("ranks", s.ranks.Len()),
		logger.Int("ladders", s.ladders.Len()),
		logger.Int("players", s.players.Len()),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop drains queued rank-up commands and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping ranks service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "command workers did not drain", logger.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(ctx, "ranks service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) rank(name string) (*model.Rank, error) {
	rk, ok := s.ranks.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: rank %q", registry.ErrNotFound, name)
	}
	return rk, nil
}

func (s *Service) ladder(name string) (*model.Ladder, error) {
	ld, ok := s.ladders.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: ladder %q", registry.ErrNotFound, name)
	}
	return ld, nil
}

// CreateRank creates a rank and appends it to ladder. An empty ladder means
// the default ladder; an empty tag or "none" gives the default tag.
func (s *Service) CreateRank(ctx context.Context, name string, cost decimal.Decimal, ladder, tag string) (*model.Rank, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	if ladder == "" {
		ladder = model.DefaultLadder
	}
	if _, err := s.ladder(ladder); err != nil {
		return nil, 0, err
	}
	if tag == "none" {
		tag = ""
	}

	rk, err := s.ranks.Create(ctx, name, tag, cost)
	if err != nil {
		return nil, 0, err
	}
	pos, err := s.ladders.AddRank(ctx, ladder, rk.ID, nil)
	if err != nil {
		if rmErr := s.ranks.Remove(ctx, rk.ID); rmErr != nil {
			s.logger.Error(ctx, "rank left off every ladder",
				logger.String("rank", rk.Name), logger.Error(rmErr))
		}
		return nil, 0, fmt.Errorf("add rank %q to ladder %q: %w", name, ladder, err)
	}
	return rk, pos, nil
}

// RankRemoval describes what deleting a rank touched.
type RankRemoval struct {
	Rank    *model.Rank
	Ladders []string
	Players int
}

// DeleteRank removes a rank everywhere. Players holding it drop to the
// previous rank of that ladder, or become unranked there.
func (s *Service) DeleteRank(ctx context.Context, name string) (RankRemoval, error) {
	if err := s.ready(); err != nil {
		return RankRemoval{}, err
	}
	rk, err := s.rank(name)
	if err != nil {
		return RankRemoval{}, err
	}
	if def, ok := s.ladders.Get(model.DefaultLadder); ok && def.Size() == 1 && def.Contains(rk.ID) {
		return RankRemoval{}, fmt.Errorf("%w: %q", ErrLastDefaultRank, name)
	}

	moved, err := s.players.ReplaceRank(ctx, rk.ID, func(ladder string) (int, bool) {
		pos := s.ladders.PositionOf(ladder, rk.ID)
		if pos < 0 {
			return 0, false
		}
		prev, ok, err := s.ladders.Previous(ladder, pos)
		if err != nil || !ok {
			return 0, false
		}
		return prev.Rank.ID, true
	})
	if err != nil {
		return RankRemoval{Rank: rk, Players: moved}, fmt.Errorf("move players off rank %q: %w", name, err)
	}
	touched, err := s.ladders.DeleteRank(ctx, rk.ID)
	if err != nil {
		return RankRemoval{Rank: rk, Ladders: touched, Players: moved}, fmt.Errorf("delete rank %q: %w", name, err)
	}
	return RankRemoval{Rank: rk, Ladders: touched, Players: moved}, nil
}

// AddRankCommand appends a rank-up command and returns it as stored.
func (s *Service) AddRankCommand(ctx context.Context, rankName, command string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	rk, err := s.rank(rankName)
	if err != nil {
		return "", err
	}
	var added string
	_, err = s.ranks.Update(ctx, rk.ID, func(r *model.Rank) error {
		added = r.AddCommand(command)
		return nil
	})
	return added, err
}

// RemoveRankCommand removes a rank-up command.
func (s *Service) RemoveRankCommand(ctx context.Context, rankName, command string) error {
	if err := s.ready(); err != nil {
		return err
	}
	rk, err := s.rank(rankName)
	if err != nil {
		return err
	}
	_, err = s.ranks.Update(ctx, rk.ID, func(r *model.Rank) error {
		if !r.RemoveCommand(command) {
			return fmt.Errorf("%w: %q", ErrNoSuchCommand, command)
		}
		return nil
	})
	return err
}

// CreateLadder creates an empty ladder.
func (s *Service) CreateLadder(ctx context.Context, name string) (*model.Ladder, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ladders.Create(ctx, name)
}

// DeleteLadder removes a ladder. Players keep their entry for it.
func (s *Service) DeleteLadder(ctx context.Context, name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if model.NormalizeLadderName(name) == model.DefaultLadder {
		return ErrDefaultLadder
	}
	return s.ladders.Remove(ctx, name)
}

// LadderAddRank places an existing rank on a ladder. A nil position appends.
func (s *Service) LadderAddRank(ctx context.Context, ladder, rankName string, position *int) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	rk, err := s.rank(rankName)
	if err != nil {
		return 0, err
	}
	return s.ladders.AddRank(ctx, ladder, rk.ID, position)
}

// LadderRemoveRank takes a rank off a ladder and compacts the positions.
func (s *Service) LadderRemoveRank(ctx context.Context, ladder, rankName string) error {
	if err := s.ready(); err != nil {
		return err
	}
	rk, err := s.rank(rankName)
	if err != nil {
		return err
	}
	ld, err := s.ladder(ladder)
	if err != nil {
		return err
	}
	pos := ld.PositionOf(rk.ID)
	if pos < 0 {
		return fmt.Errorf("%w: %q on %q", registry.ErrRankNotOnLadder, rankName, ld.Name)
	}
	_, err = s.ladders.RemoveRank(ctx, ld.Name, pos)
	return err
}

// Join makes sure the player has a record and an opened balance. It
// reports whether the record was created by this call.
func (s *Service) Join(ctx context.Context, uid uuid.UUID) (*model.Player, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	pl, created, err := s.players.CreateIfAbsent(ctx, uid)
	if err != nil {
		return nil, false, err
	}
	if err := s.ledger.Open(ctx, uid, s.startingBalance); err != nil {
		return pl, created, fmt.Errorf("open balance: %w", err)
	}
	return pl, created, nil
}

// RankUp runs one rank-up. A non-empty requestID that was already handled
// is rejected with ErrDuplicateRequest; failed attempts can be retried
// under the same id.
func (s *Service) RankUp(ctx context.Context, requestID string, subject rankup.Subject, ladder string) (rankup.Result, error) {
	if err := s.ready(); err != nil {
		return rankup.Result{}, err
	}
	if requestID != "" && s.deduper.SeenAndRecord(ctx, requestID) {
		metrics.RecordDuplicateRequest()
		s.logger.Debug(ctx, "duplicate rank-up request", logger.String("requestID", requestID))
		return rankup.Result{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}
	res := s.engine.RankUp(ctx, subject, ladder)
	if requestID != "" && res.Status == rankup.Failure {
		s.deduper.Unrecord(ctx, requestID)
	}
	return res, nil
}

// Deposit credits a player's balance.
func (s *Service) Deposit(ctx context.Context, uid uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := s.ready(); err != nil {
		return decimal.Zero, err
	}
	if err := s.ledger.Deposit(ctx, uid, amount); err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Balance(ctx, uid)
}

// Balance returns a player's balance.
func (s *Service) Balance(ctx context.Context, uid uuid.UUID) (decimal.Decimal, error) {
	if err := s.ready(); err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Balance(ctx, uid)
}

// Rank looks a rank up by name.
func (s *Service) Rank(name string) (*model.Rank, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.rank(name)
}

// Ranks lists every rank in creation order.
func (s *Service) Ranks() ([]*model.Rank, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ranks.List(), nil
}

// RankInfo summarizes where a rank is used.
type RankInfo struct {
	Rank    *model.Rank
	Ladders []string
	Players int
}

// DescribeRank returns the rank with the ladders and players holding it.
func (s *Service) DescribeRank(name string) (RankInfo, error) {
	if err := s.ready(); err != nil {
		return RankInfo{}, err
	}
	rk, err := s.rank(name)
	if err != nil {
		return RankInfo{}, err
	}
	info := RankInfo{Rank: rk, Ladders: []string{}}
	for _, ld := range s.ladders.WithRank(rk.ID) {
		info.Ladders = append(info.Ladders, ld.Name)
	}
	info.Players = len(s.players.WithRank(rk.ID))
	return info, nil
}

// Ladder looks a ladder up by name, ignoring case.
func (s *Service) Ladder(name string) (*model.Ladder, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ladder(name)
}

// Ladders lists every ladder in creation order.
func (s *Service) Ladders() ([]*model.Ladder, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ladders.List(), nil
}

// LadderSteps returns the ladder's live ranks in position order.
func (s *Service) LadderSteps(name string) ([]registry.Step, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ld, err := s.ladder(name)
	if err != nil {
		return nil, err
	}
	steps := make([]registry.Step, 0, ld.Size())
	for _, e := range ld.Entries() {
		if rk, ok := s.ranks.GetByID(e.RankID); ok {
			steps = append(steps, registry.Step{Position: e.Position, Rank: rk})
		}
	}
	return steps, nil
}

// PlayerView is a player's ranks and balance.
type PlayerView struct {
	UID     uuid.UUID
	Ranks   map[string]*model.Rank
	Balance decimal.Decimal
}

// Player returns the player's ranks by ladder and balance.
func (s *Service) Player(ctx context.Context, uid uuid.UUID) (PlayerView, error) {
	if err := s.ready(); err != nil {
		return PlayerView{}, err
	}
	if _, ok := s.players.Get(uid); !ok {
		return PlayerView{}, fmt.Errorf("%w: player %s", registry.ErrNotFound, uid)
	}
	bal, err := s.ledger.Balance(ctx, uid)
	if err != nil {
		return PlayerView{}, err
	}
	return PlayerView{UID: uid, Ranks: s.players.Ranks(uid), Balance: bal}, nil
}

// Subscribe returns a channel of join and rank-up events.
func (s *Service) Subscribe() (chan notify.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.events.Subscribe(), nil
}

// Unsubscribe closes a channel returned by Subscribe.
func (s *Service) Unsubscribe(ch chan notify.Event) {
	if err := s.ready(); err != nil {
		return
	}
	s.events.Unsubscribe(ch)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		queueLen := s.queue.Len()
		stats["ranks"] = s.ranks.Len()
		stats["ladders"] = s.ladders.Len()
		stats["players"] = s.players.Len()
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		stats["rankUpsInFlight"] = s.engine.Locked()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
