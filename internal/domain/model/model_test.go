package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartystreets/goconvey/convey"
)

func pos(p int) *int { return &p }

func TestRank(t *testing.T) {
	convey.Convey("Given a new rank", t, func() {
		r, err := model.NewRank(0, "Miner", "", decimal.NewFromInt(100))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the tag defaults to the bracketed name", func() {
			convey.So(r.Tag, convey.ShouldEqual, "[Miner]")
			convey.So(r.Commands, convey.ShouldBeEmpty)
		})

		convey.Convey("When adding and removing commands with a leading slash", func() {
			convey.So(r.AddCommand("/give {player} pick 1"), convey.ShouldEqual, "give {player} pick 1")
			r.AddCommand("say hi")

			convey.So(r.RemoveCommand("/give {player} pick 1"), convey.ShouldBeTrue)
			convey.So(r.RemoveCommand("missing"), convey.ShouldBeFalse)
			convey.So(r.Commands, convey.ShouldResemble, []string{"say hi"})
		})

		convey.Convey("When cloning", func() {
			r.AddCommand("a")
			c := r.Clone()
			c.Commands[0] = "b"

			convey.Convey("Then the copy does not share commands", func() {
				convey.So(r.Commands[0], convey.ShouldEqual, "a")
			})
		})

		convey.Convey("When encoding as JSON", func() {
			b, err := json.Marshal(r)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the stored field names are used", func() {
				convey.So(string(b), convey.ShouldContainSubstring, `"rankUpCommands":[]`)
				convey.So(string(b), convey.ShouldContainSubstring, `"cost":"100"`)
			})
		})
	})

	convey.Convey("Given invalid rank input", t, func() {
		_, err := model.NewRank(0, "Bad", "", decimal.NewFromInt(-1))
		convey.So(errors.Is(err, model.ErrNegativeCost), convey.ShouldBeTrue)

		_, err = model.NewRank(0, "  ", "", decimal.Zero)
		convey.So(err, convey.ShouldEqual, model.ErrEmptyName)
	})
}

func TestLadderPositions(t *testing.T) {
	convey.Convey("Given a ladder with three appended ranks", t, func() {
		l, err := model.NewLadder(1, "  Mines ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(l.Name, convey.ShouldEqual, "mines")

		for _, id := range []int{10, 11, 12} {
			_, err := l.Add(id, nil)
			convey.So(err, convey.ShouldBeNil)
		}

		convey.Convey("Then positions are assigned from zero", func() {
			convey.So(l.Entries(), convey.ShouldResemble, []model.PositionRank{
				{Position: 0, RankID: 10}, {Position: 1, RankID: 11}, {Position: 2, RankID: 12},
			})
			low, ok := l.Lowest()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(low.RankID, convey.ShouldEqual, 10)
		})

		convey.Convey("When walking the ladder", func() {
			next, ok := l.Next(-1)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(next.RankID, convey.ShouldEqual, 10)

			next, _ = l.Next(0)
			convey.So(next.RankID, convey.ShouldEqual, 11)

			_, ok = l.Next(2)
			convey.So(ok, convey.ShouldBeFalse)

			prev, ok := l.Previous(2)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(prev.RankID, convey.ShouldEqual, 11)

			_, ok = l.Previous(0)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When removing the middle position", func() {
			removed, err := l.RemoveAt(1)
			convey.So(err, convey.ShouldBeNil)
			convey.So(removed, convey.ShouldEqual, 11)

			convey.Convey("Then the rank above is compacted into its slot", func() {
				next, ok := l.Next(0)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(next, convey.ShouldResemble, model.PositionRank{Position: 1, RankID: 12})
				convey.So(l.PositionOf(11), convey.ShouldEqual, -1)
			})
		})

		convey.Convey("When removing an unoccupied position", func() {
			_, err := l.RemoveAt(3)
			convey.So(errors.Is(err, model.ErrPositionNotOccupied), convey.ShouldBeTrue)
			_, err = l.RemoveAt(-1)
			convey.So(errors.Is(err, model.ErrPositionNotOccupied), convey.ShouldBeTrue)
			convey.So(l.Size(), convey.ShouldEqual, 3)
		})

		convey.Convey("When inserting at an occupied position", func() {
			p, err := l.Add(20, pos(1))
			convey.So(err, convey.ShouldBeNil)
			convey.So(p, convey.ShouldEqual, 1)

			convey.Convey("Then the occupant and later entries shift up", func() {
				convey.So(l.Entries(), convey.ShouldResemble, []model.PositionRank{
					{Position: 0, RankID: 10}, {Position: 1, RankID: 20},
					{Position: 2, RankID: 11}, {Position: 3, RankID: 12},
				})
			})
		})

		convey.Convey("When inserting past the end", func() {
			_, err := l.Add(30, pos(7))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then Next skips the gap", func() {
				next, ok := l.Next(2)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(next.RankID, convey.ShouldEqual, 30)
				prev, _ := l.Previous(7)
				convey.So(prev.RankID, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When adding a rank that is already present", func() {
			_, err := l.Add(11, nil)
			convey.So(errors.Is(err, model.ErrDuplicateRank), convey.ShouldBeTrue)
			_, err = l.Add(99, pos(-2))
			convey.So(errors.Is(err, model.ErrInvalidPosition), convey.ShouldBeTrue)
		})
	})
}

func TestLadderPositionInverse(t *testing.T) {
	convey.Convey("Given a sequence of mixed ladder mutations", t, func() {
		l, _ := model.NewLadder(0, "default")
		ops := []struct {
			add    int
			at     *int
			remove int
		}{
			{add: 1}, {add: 2}, {add: 3, at: pos(0)}, {remove: 1}, {add: 4, at: pos(1)},
			{add: 5}, {remove: 0}, {add: 6, at: pos(9)}, {remove: 2}, {add: 7, at: pos(0)},
		}
		for _, op := range ops {
			if op.add != 0 {
				_, err := l.Add(op.add, op.at)
				convey.So(err, convey.ShouldBeNil)
				continue
			}
			_, err := l.RemoveAt(op.remove)
			convey.So(err, convey.ShouldBeNil)
		}

		convey.Convey("Then PositionOf inverts the position mapping", func() {
			seenPos := map[int]bool{}
			seenRank := map[int]bool{}
			for _, e := range l.Entries() {
				convey.So(seenPos[e.Position], convey.ShouldBeFalse)
				convey.So(seenRank[e.RankID], convey.ShouldBeFalse)
				seenPos[e.Position] = true
				seenRank[e.RankID] = true

				convey.So(l.PositionOf(e.RankID), convey.ShouldEqual, e.Position)
				id, ok := l.At(e.Position)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(id, convey.ShouldEqual, e.RankID)
			}
		})
	})
}

func TestLadderJSON(t *testing.T) {
	convey.Convey("Given a stored ladder with unordered and clashing entries", t, func() {
		raw := `{"id":3,"name":"Mines","ranks":[{"position":2,"rankId":7},{"position":0,"rankId":5},{"position":2,"rankId":8},{"position":1,"rankId":5}]}`
		var l model.Ladder
		convey.So(json.Unmarshal([]byte(raw), &l), convey.ShouldBeNil)

		convey.Convey("Then entries are sorted and duplicates dropped", func() {
			convey.So(l.Name, convey.ShouldEqual, "mines")
			convey.So(l.Entries(), convey.ShouldResemble, []model.PositionRank{
				{Position: 0, RankID: 5}, {Position: 2, RankID: 7},
			})
		})

		convey.Convey("And it encodes back with the same field names", func() {
			b, err := json.Marshal(&l)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual, `{"id":3,"name":"mines","ranks":[{"position":0,"rankId":5},{"position":2,"rankId":7}]}`)
		})
	})
}

func TestPlayer(t *testing.T) {
	convey.Convey("Given a player with ranks on two ladders", t, func() {
		p := model.NewPlayer(uuid.New())
		p.SetRank("Default", 1)
		p.SetRank("mines", 1)
		p.SetRank("mines", 2)

		convey.Convey("Then there is one rank per ladder", func() {
			id, ok := p.RankID("default")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(id, convey.ShouldEqual, 1)
			id, _ = p.RankID("MINES")
			convey.So(id, convey.ShouldEqual, 2)
		})

		convey.Convey("When removing ladders", func() {
			convey.So(p.RemoveLadder("default"), convey.ShouldBeFalse)
			convey.So(p.RemoveLadder("mines"), convey.ShouldBeTrue)
			convey.So(p.Ranks, convey.ShouldResemble, map[string]int{"default": 1})
		})

		convey.Convey("When removing a rank id", func() {
			ladders := p.RemoveRankID(1)
			convey.So(ladders, convey.ShouldResemble, []string{"default"})
			_, ok := p.RankID("default")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When cloning", func() {
			c := p.Clone()
			c.SetRank("default", 9)
			id, _ := p.RankID("default")
			convey.So(id, convey.ShouldEqual, 1)
		})
	})
}
