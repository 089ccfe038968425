package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/MC-Prison/PrisonRanks/internal/app"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/mq/worker"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/notify"
	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/MC-Prison/PrisonRanks/internal/domain/rankup"
	"github.com/MC-Prison/PrisonRanks/internal/domain/registry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

type commandLog struct {
	mu   sync.Mutex
	cmds []string
	got  chan string
}

func newCommandLog() *commandLog {
	return &commandLog{got: make(chan string, 16)}
}

func (c *commandLog) Execute(_ context.Context, _ uuid.UUID, command string) error {
	c.mu.Lock()
	c.cmds = append(c.cmds, command)
	c.mu.Unlock()
	c.got <- command
	return nil
}

func startService(ctx context.Context, store storage.Store, exec worker.Executor) *service.Service {
	svc := service.New(
		service.WithStore(store),
		service.WithWorkerCount(2),
		service.WithQueueSize(100),
		service.WithDedupeSize(100),
		service.WithStartingBalance(decimal.NewFromInt(150)),
		service.WithExecutor(exec),
	)
	So(svc.Start(ctx), ShouldBeNil)
	return svc
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with two ranks on the default ladder", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store := storage.NewMemStore()
		cmds := newCommandLog()
		svc := startService(ctx, store, cmds)
		defer svc.Stop()

		miner, pos, err := svc.CreateRank(ctx, "Miner", decimal.NewFromInt(100), "", "none")
		So(err, ShouldBeNil)
		So(pos, ShouldEqual, 0)
		So(miner.Tag, ShouldEqual, "[Miner]")
		digger, pos, err := svc.CreateRank(ctx, "Digger", decimal.NewFromInt(500), "default", "&7Digger")
		So(err, ShouldBeNil)
		So(pos, ShouldEqual, 1)
		So(digger.Tag, ShouldEqual, "&7Digger")

		steve := rankup.Subject{UID: uuid.New(), Name: "Steve"}

		Convey("When a player joins twice", func() {
			_, created, err := svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			_, created, err = svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)

			Convey("Then only the first join creates the record and credits the balance", func() {
				So(created, ShouldBeFalse)
				bal, err := svc.Balance(ctx, steve.UID)
				So(err, ShouldBeNil)
				So(bal.Equal(decimal.NewFromInt(150)), ShouldBeTrue)
			})
		})

		Convey("When the player ranks up with a request id", func() {
			_, _, err := svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)
			res, err := svc.RankUp(ctx, "req-1", steve, "default")
			So(err, ShouldBeNil)

			Convey("Then the first rank is bought", func() {
				So(res.Status, ShouldEqual, rankup.Success)
				So(res.Rank.Name, ShouldEqual, "Miner")
				So(res.Balance.Equal(decimal.NewFromInt(50)), ShouldBeTrue)
			})

			Convey("And replaying the same request id is rejected", func() {
				_, err := svc.RankUp(ctx, "req-1", steve, "default")
				So(errors.Is(err, service.ErrDuplicateRequest), ShouldBeTrue)
			})

			Convey("And the next rank cannot be afforded", func() {
				res, err := svc.RankUp(ctx, "req-2", steve, "default")
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, rankup.CantAfford)
			})

			Convey("And the player view shows the rank and balance", func() {
				view, err := svc.Player(ctx, steve.UID)
				So(err, ShouldBeNil)
				So(view.Ranks["default"].Name, ShouldEqual, "Miner")
				So(view.Balance.Equal(decimal.NewFromInt(50)), ShouldBeTrue)
			})
		})

		Convey("When a rank with commands is bought", func() {
			added, err := svc.AddRankCommand(ctx, "Digger", "/say {player} reached {rank}")
			So(err, ShouldBeNil)
			So(added, ShouldEqual, "say {player} reached {rank}")

			_, _, err = svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)
			_, err = svc.Deposit(ctx, steve.UID, decimal.NewFromInt(1000))
			So(err, ShouldBeNil)
			_, err = svc.RankUp(ctx, "", steve, "default")
			So(err, ShouldBeNil)
			res, err := svc.RankUp(ctx, "", steve, "default")
			So(err, ShouldBeNil)
			So(res.Status, ShouldEqual, rankup.Success)

			Convey("Then the expanded command reaches the executor", func() {
				select {
				case got := <-cmds.got:
					So(got, ShouldEqual, "say Steve reached Digger")
				case <-time.After(5 * time.Second):
					So("command not executed", ShouldBeEmpty)
				}
			})

			Convey("And the player is at the highest rank", func() {
				res, err := svc.RankUp(ctx, "", steve, "default")
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, rankup.Highest)
			})

			Convey("And the command can be removed once", func() {
				So(svc.RemoveRankCommand(ctx, "Digger", "say {player} reached {rank}"), ShouldBeNil)
				err := svc.RemoveRankCommand(ctx, "Digger", "say {player} reached {rank}")
				So(errors.Is(err, service.ErrNoSuchCommand), ShouldBeTrue)
			})
		})

		Convey("When a rank held by a player is deleted", func() {
			_, _, err := svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)
			_, err = svc.Deposit(ctx, steve.UID, decimal.NewFromInt(1000))
			So(err, ShouldBeNil)
			_, _ = svc.RankUp(ctx, "", steve, "default")
			_, _ = svc.RankUp(ctx, "", steve, "default")

			removal, err := svc.DeleteRank(ctx, "Digger")
			So(err, ShouldBeNil)

			Convey("Then the player drops to the previous rank", func() {
				So(removal.Ladders, ShouldResemble, []string{"default"})
				So(removal.Players, ShouldEqual, 1)
				view, err := svc.Player(ctx, steve.UID)
				So(err, ShouldBeNil)
				So(view.Ranks["default"].Name, ShouldEqual, "Miner")
			})

			Convey("And the last rank of the default ladder cannot be deleted", func() {
				_, err := svc.DeleteRank(ctx, "Miner")
				So(errors.Is(err, service.ErrLastDefaultRank), ShouldBeTrue)
				_, err = svc.Rank("Miner")
				So(err, ShouldBeNil)
			})

			Convey("And the rank is gone from the registry", func() {
				_, err := svc.Rank("Digger")
				So(errors.Is(err, registry.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When managing another ladder", func() {
			_, err := svc.CreateLadder(ctx, "Mines")
			So(err, ShouldBeNil)
			p, err := svc.LadderAddRank(ctx, "mines", "Digger", nil)
			So(err, ShouldBeNil)
			So(p, ShouldEqual, 0)

			Convey("Then the rank info lists both ladders", func() {
				info, err := svc.DescribeRank("Digger")
				So(err, ShouldBeNil)
				So(info.Ladders, ShouldResemble, []string{"default", "mines"})
				So(info.Players, ShouldEqual, 0)
			})

			Convey("And the rank can be taken off the ladder once", func() {
				So(svc.LadderRemoveRank(ctx, "mines", "Digger"), ShouldBeNil)
				err := svc.LadderRemoveRank(ctx, "mines", "Digger")
				So(errors.Is(err, registry.ErrRankNotOnLadder), ShouldBeTrue)
			})

			Convey("And the ladder can be deleted but default cannot", func() {
				So(svc.DeleteLadder(ctx, "mines"), ShouldBeNil)
				So(errors.Is(svc.DeleteLadder(ctx, "Default"), service.ErrDefaultLadder), ShouldBeTrue)
			})
		})

		Convey("When creating a rank on a missing ladder", func() {
			_, _, err := svc.CreateRank(ctx, "Ghost", decimal.NewFromInt(1), "nowhere", "")

			Convey("Then it fails and no rank is created", func() {
				So(errors.Is(err, registry.ErrNotFound), ShouldBeTrue)
				_, err := svc.Rank("Ghost")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When listing a ladder", func() {
			steps, err := svc.LadderSteps("default")
			So(err, ShouldBeNil)

			Convey("Then ranks come back in position order", func() {
				So(len(steps), ShouldEqual, 2)
				So(steps[0].Rank.Name, ShouldEqual, "Miner")
				So(steps[1].Position, ShouldEqual, 1)
			})
		})

		Convey("When a subscriber watches joins", func() {
			ch, err := svc.Subscribe()
			So(err, ShouldBeNil)
			defer svc.Unsubscribe(ch)
			_, _, err = svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)

			Convey("Then a first-join event is delivered", func() {
				select {
				case ev := <-ch:
					So(ev.Type, ShouldEqual, notify.FirstJoin)
					So(ev.UID, ShouldEqual, steve.UID)
				case <-time.After(time.Second):
					So("no event", ShouldBeEmpty)
				}
			})
		})

		Convey("When the service restarts on the same store", func() {
			_, _, err := svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)
			_, err = svc.RankUp(ctx, "", steve, "default")
			So(err, ShouldBeNil)
			svc.Stop()

			again := startService(ctx, store, newCommandLog())
			defer again.Stop()

			Convey("Then ranks, players and balances are reloaded", func() {
				ranks, err := again.Ranks()
				So(err, ShouldBeNil)
				So(len(ranks), ShouldEqual, 2)
				view, err := again.Player(ctx, steve.UID)
				So(err, ShouldBeNil)
				So(view.Ranks["default"].Name, ShouldEqual, "Miner")
				So(view.Balance.Equal(decimal.NewFromInt(50)), ShouldBeTrue)
			})

			Convey("And rejoining does not credit the starting balance again", func() {
				_, created, err := again.Join(ctx, steve.UID)
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				bal, _ := again.Balance(ctx, steve.UID)
				So(bal.Equal(decimal.NewFromInt(50)), ShouldBeTrue)
			})
		})
	})
}
