// Package economy implements the balance book the rank-up engine charges.
package economy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type balanceRecord struct {
	UID     uuid.UUID       `json:"uid"`
	Balance decimal.Decimal `json:"balance"`
}

// Ledger keeps player balances in memory and mirrors every change to the store.
// A balance change is committed in memory only after the store accepted it.
type Ledger struct {
	mu       sync.Mutex
	store    storage.Store
	balances map[uuid.UUID]decimal.Decimal
}

// NewLedger builds a ledger over store.
func NewLedger(store storage.Store) *Ledger {
	return &Ledger{store: store, balances: make(map[uuid.UUID]decimal.Decimal)}
}

// Load reads every stored balance.
func (l *Ledger) Load(ctx context.Context) error {
	recs, err := storage.LoadAll(ctx, l.store, storage.KindBalance, func() *balanceRecord { return &balanceRecord{} })
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range recs {
		l.balances[r.UID] = r.Balance
	}
	return nil
}

// Balance returns the player's balance, zero when unknown.
func (l *Ledger) Balance(_ context.Context, uid uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[uid], nil
}

// Withdraw debits amount or fails with ErrInsufficientFunds.
func (l *Ledger) Withdraw(ctx context.Context, uid uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.balances[uid]
	if cur.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, cur, amount)
	}
	return l.commit(ctx, uid, cur.Sub(amount))
}

// Deposit credits amount.
func (l *Ledger) Deposit(ctx context.Context, uid uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commit(ctx, uid, l.balances[uid].Add(amount))
}

// Open credits the starting balance once, for a player with no stored balance.
func (l *Ledger) Open(ctx context.Context, uid uuid.UUID, starting decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.balances[uid]; ok {
		return nil
	}
	var rec balanceRecord
	err := storage.Get(ctx, l.store, storage.BalanceKey(uid), &rec)
	switch {
	case err == nil:
		l.balances[uid] = rec.Balance
		return nil
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}
	return l.commit(ctx, uid, starting)
}

func (l *Ledger) commit(ctx context.Context, uid uuid.UUID, next decimal.Decimal) error {
	if err := storage.Put(ctx, l.store, storage.KindBalance, storage.BalanceKey(uid), balanceRecord{UID: uid, Balance: next}); err != nil {
		return err
	}
	l.balances[uid] = next
	return nil
}
