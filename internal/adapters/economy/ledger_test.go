package economy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/economy"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartystreets/goconvey/convey"
)

func TestLedger(t *testing.T) {
	convey.Convey("Given a ledger over a memory store", t, func() {
		ctx := context.Background()
		store := storage.NewMemStore()
		l := economy.NewLedger(store)
		uid := uuid.New()

		convey.So(l.Deposit(ctx, uid, decimal.NewFromInt(150)), convey.ShouldBeNil)

		convey.Convey("When withdrawing less than the balance", func() {
			convey.So(l.Withdraw(ctx, uid, decimal.NewFromInt(100)), convey.ShouldBeNil)

			convey.Convey("Then the balance is reduced", func() {
				bal, _ := l.Balance(ctx, uid)
				convey.So(bal.Equal(decimal.NewFromInt(50)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When withdrawing more than the balance", func() {
			err := l.Withdraw(ctx, uid, decimal.NewFromInt(500))

			convey.Convey("Then it fails and the balance is unchanged", func() {
				convey.So(errors.Is(err, economy.ErrInsufficientFunds), convey.ShouldBeTrue)
				bal, _ := l.Balance(ctx, uid)
				convey.So(bal.Equal(decimal.NewFromInt(150)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the store rejects the write", func() {
			store.FailWith(func(op, _ string) error {
				if op == "write" {
					return errors.New("offline")
				}
				return nil
			})
			err := l.Withdraw(ctx, uid, decimal.NewFromInt(10))

			convey.Convey("Then the in-memory balance is untouched", func() {
				convey.So(errors.Is(err, storage.ErrPersistence), convey.ShouldBeTrue)
				bal, _ := l.Balance(ctx, uid)
				convey.So(bal.Equal(decimal.NewFromInt(150)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a new ledger loads the store", func() {
			other := economy.NewLedger(store)
			convey.So(other.Load(ctx), convey.ShouldBeNil)

			convey.Convey("Then balances are restored", func() {
				bal, _ := other.Balance(ctx, uid)
				convey.So(bal.Equal(decimal.NewFromInt(150)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When opening accounts", func() {
			fresh := uuid.New()
			convey.So(l.Open(ctx, fresh, decimal.NewFromInt(25)), convey.ShouldBeNil)
			convey.So(l.Open(ctx, fresh, decimal.NewFromInt(99)), convey.ShouldBeNil)
			convey.So(l.Open(ctx, uid, decimal.NewFromInt(99)), convey.ShouldBeNil)

			convey.Convey("Then the starting balance is credited only once", func() {
				bal, _ := l.Balance(ctx, fresh)
				convey.So(bal.Equal(decimal.NewFromInt(25)), convey.ShouldBeTrue)
				bal, _ = l.Balance(ctx, uid)
				convey.So(bal.Equal(decimal.NewFromInt(150)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When many withdrawals race", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			ok := 0
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if l.Withdraw(ctx, uid, decimal.NewFromInt(10)) == nil {
						mu.Lock()
						ok++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			convey.Convey("Then the balance never goes negative", func() {
				convey.So(ok, convey.ShouldEqual, 15)
				bal, _ := l.Balance(ctx, uid)
				convey.So(bal.IsZero(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When passing a negative amount", func() {
			convey.So(errors.Is(l.Deposit(ctx, uid, decimal.NewFromInt(-1)), economy.ErrInvalidAmount), convey.ShouldBeTrue)
		})
	})
}
