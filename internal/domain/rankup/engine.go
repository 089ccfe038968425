// Package rankup runs the rank-up transaction: check funds, debit, promote,
// then dispatch the new rank's commands.
package rankup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/mq/queue"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/MC-Prison/PrisonRanks/internal/domain/registry"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Economy is the balance book charged for rank-ups.
type Economy interface {
	Balance(ctx context.Context, uid uuid.UUID) (decimal.Decimal, error)
	Withdraw(ctx context.Context, uid uuid.UUID, amount decimal.Decimal) error
	Deposit(ctx context.Context, uid uuid.UUID, amount decimal.Decimal) error
}

// Dispatcher runs rank-up commands on behalf of a player.
type Dispatcher interface {
	Dispatch(ctx context.Context, uid uuid.UUID, commands []string) error
}

// Announcer is told about successful rank-ups.
type Announcer interface {
	RankedUp(ctx context.Context, uid uuid.UUID, ladder, rank string)
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, uuid.UUID, []string) error { return nil }

type nopAnnouncer struct{}

func (nopAnnouncer) RankedUp(context.Context, uuid.UUID, string, string) {}

// Subject identifies the player ranking up. Name is substituted into
// commands and falls back to the uid when empty.
type Subject struct {
	UID  uuid.UUID
	Name string
}

func (s Subject) displayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.UID.String()
}

// Engine performs rank-ups. At most one rank-up per player runs at a time.
type Engine struct {
	ladders    *registry.Ladders
	players    *registry.Players
	economy    Economy
	dispatcher Dispatcher
	announcer  Announcer
	locks      *keyedLocks
	log        logger.Logger
}

// NewEngine builds an engine over the registries and economy.
func NewEngine(ladders *registry.Ladders, players *registry.Players, economy Economy, opts ...Option) *Engine {
	e := &Engine{
		ladders:    ladders,
		players:    players,
		economy:    economy,
		dispatcher: nopDispatcher{},
		announcer:  nopAnnouncer{},
		locks:      newKeyedLocks(),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RankUp moves the player one rank up ladder, charging the next rank's cost.
// An empty ladder name means the default ladder.
// The debit is refunded when the promotion cannot be recorded.
func (e *Engine) RankUp(ctx context.Context, subject Subject, ladder string) (res Result) {
	start := time.Now()
	ladder = model.NormalizeLadderName(ladder)
	if ladder == "" {
		ladder = model.DefaultLadder
	}
	res.Ladder = ladder
	defer func() {
		metrics.RecordRankUp(res.Status.String(), time.Since(start))
	}()

	unlock := e.locks.lock(subject.UID)
	defer unlock()

	current := registry.NoRank
	if cur, ok := e.players.RankOn(subject.UID, ladder); ok {
		res.Previous = cur
		current = cur.ID
	}

	ascent, err := e.ladders.NextAfter(ladder, current)
	if errors.Is(err, registry.ErrNotFound) {
		res.Status = NoSuchLadder
		return res
	} else if err != nil {
		return e.fail(ctx, res, err)
	}
	if _, ok := e.players.Get(subject.UID); !ok {
		res.Status = Failure
		res.Err = fmt.Errorf("%w: %s", ErrPlayerNotFound, subject.UID)
		return res
	}
	switch {
	case !ascent.Found && ascent.Size == 0:
		res.Status = NoRanks
		return res
	case !ascent.Found:
		res.Status = Highest
		return res
	}
	next := ascent.Next
	res.Rank = next.Rank
	res.Cost = next.Rank.Cost

	balance, err := e.economy.Balance(ctx, subject.UID)
	if err != nil {
		return e.fail(ctx, res, fmt.Errorf("read balance: %w", err))
	}
	res.Balance = balance
	if balance.LessThan(next.Rank.Cost) {
		res.Status = CantAfford
		return res
	}

	if err := e.economy.Withdraw(ctx, subject.UID, next.Rank.Cost); err != nil {
		return e.fail(ctx, res, fmt.Errorf("withdraw %s: %w", next.Rank.Cost, err))
	}

	if err := e.players.AddRank(ctx, subject.UID, ladder, next.Rank.ID); err != nil {
		res.Err = fmt.Errorf("assign rank %q: %w", next.Rank.Name, err)
		res.Refunded = e.refund(ctx, subject.UID, next.Rank, err)
		if !res.Refunded {
			res.Err = fmt.Errorf("%w: %w", res.Err, ErrRefundFailed)
			res.Balance = balance.Sub(next.Rank.Cost)
		}
		res.Status = Failure
		return res
	}
	res.Balance = balance.Sub(next.Rank.Cost)
	res.Status = Success

	if cmds := expand(next.Rank.Commands, subject, next.Rank.Name, ladder); len(cmds) > 0 {
		if err := e.dispatcher.Dispatch(ctx, subject.UID, cmds); err != nil {
			res.CommandsDropped = len(cmds)
			res.DispatchErr = err
			metrics.RecordCommandsDropped(dropReason(err))
			e.log.Warn(ctx, "rank-up commands not dispatched",
				logger.String("uid", subject.UID.String()),
				logger.String("rank", next.Rank.Name),
				logger.Int("commands", len(cmds)),
				logger.Error(err))
		}
	}
	e.announcer.RankedUp(ctx, subject.UID, ladder, next.Rank.Name)
	e.log.Info(ctx, "player ranked up",
		logger.String("uid", subject.UID.String()),
		logger.String("ladder", ladder),
		logger.String("rank", next.Rank.Name),
		logger.String("cost", next.Rank.Cost.String()))
	return res
}

func (e *Engine) fail(ctx context.Context, res Result, err error) Result {
	e.log.Error(ctx, "rank-up failed", logger.String("ladder", res.Ladder), logger.Error(err))
	res.Status = Failure
	res.Err = err
	return res
}

// refund returns the cost of rank after the promotion failed with cause.
func (e *Engine) refund(ctx context.Context, uid uuid.UUID, rank *model.Rank, cause error) bool {
	fields := []logger.Field{
		logger.String("uid", uid.String()),
		logger.String("rank", rank.Name),
		logger.String("cost", rank.Cost.String()),
		logger.String("cause", cause.Error()),
	}
	if err := e.economy.Deposit(ctx, uid, rank.Cost); err != nil {
		metrics.RecordInconsistency("refund_failed")
		e.log.Error(ctx, "rank-up charged without promotion, refund failed", append(fields, logger.Error(err))...)
		return false
	}
	metrics.RecordRefund()
	e.log.Warn(ctx, "rank-up refunded after promotion failed", fields...)
	return true
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, queue.ErrFull):
		return "full"
	case errors.Is(err, queue.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}

// Locked reports how many players currently hold or wait for a rank-up lock.
func (e *Engine) Locked() int {
	return e.locks.size()
}

// expand substitutes {player}, {rank} and {ladder} in each command.
func expand(commands []string, subject Subject, rank, ladder string) []string {
	if len(commands) == 0 {
		return nil
	}
	r := strings.NewReplacer(
		"{player}", subject.displayName(),
		"{uuid}", subject.UID.String(),
		"{rank}", rank,
		"{ladder}", ladder,
	)
	out := make([]string, 0, len(commands))
	for _, c := range commands {
		out = append(out, r.Replace(c))
	}
	return out
}
