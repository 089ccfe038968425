package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"
)

type rankBody struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func exerciseStore(ctx context.Context, s storage.Store) {
	convey.Convey("When writing and reading records", func() {
		for _, id := range []int{10, 2, 1} {
			convey.So(storage.Put(ctx, s, storage.KindRank, storage.RankKey(id), rankBody{ID: id, Name: "r"}), convey.ShouldBeNil)
		}
		convey.So(storage.Put(ctx, s, storage.KindLadder, storage.LadderKey(0), map[string]any{"name": "default"}), convey.ShouldBeNil)

		convey.Convey("Then Get decodes a single record", func() {
			var r rankBody
			convey.So(storage.Get(ctx, s, "rank_2", &r), convey.ShouldBeNil)
			convey.So(r.ID, convey.ShouldEqual, 2)
		})

		convey.Convey("Then ReadAll returns only the kind in numeric key order", func() {
			all, err := storage.LoadAll(ctx, s, storage.KindRank, func() *rankBody { return &rankBody{} })
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(all), convey.ShouldEqual, 3)
			convey.So([]int{all[0].ID, all[1].ID, all[2].ID}, convey.ShouldResemble, []int{1, 2, 10})
		})

		convey.Convey("Then overwriting replaces the body", func() {
			convey.So(storage.Put(ctx, s, storage.KindRank, "rank_1", rankBody{ID: 1, Name: "renamed"}), convey.ShouldBeNil)
			var r rankBody
			convey.So(storage.Get(ctx, s, "rank_1", &r), convey.ShouldBeNil)
			convey.So(r.Name, convey.ShouldEqual, "renamed")
		})

		convey.Convey("Then deleting removes the record and is idempotent", func() {
			convey.So(s.Delete(ctx, "rank_1"), convey.ShouldBeNil)
			convey.So(s.Delete(ctx, "rank_1"), convey.ShouldBeNil)
			_, err := s.Read(ctx, "rank_1")
			convey.So(errors.Is(err, storage.ErrNotFound), convey.ShouldBeTrue)
		})
	})
}

func TestMemStore(t *testing.T) {
	convey.Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := storage.NewMemStore()
		exerciseStore(ctx, s)

		convey.Convey("When a failure hook is installed", func() {
			s.FailWith(func(op, key string) error {
				if op == "write" {
					return errors.New("disk full")
				}
				return nil
			})
			err := s.Write(ctx, storage.Record{Key: "rank_5", Kind: storage.KindRank, Body: []byte("{}")})

			convey.Convey("Then writes fail with a persistence error", func() {
				convey.So(errors.Is(err, storage.ErrPersistence), convey.ShouldBeTrue)
				convey.So(s.Len(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestSQLiteStore(t *testing.T) {
	convey.Convey("Given a sqlite store in a temp directory", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "ranks.sqlite")
		s, err := storage.OpenSQL(ctx, storage.DialectSQLite, path)
		convey.So(err, convey.ShouldBeNil)
		defer s.Close()

		exerciseStore(ctx, s)

		convey.Convey("When the database is reopened", func() {
			uid := uuid.New()
			convey.So(storage.Put(ctx, s, storage.KindPlayer, storage.PlayerKey(uid), map[string]string{"uid": uid.String()}), convey.ShouldBeNil)
			convey.So(s.Close(), convey.ShouldBeNil)

			again, err := storage.OpenSQL(ctx, storage.DialectSQLite, path)
			convey.So(err, convey.ShouldBeNil)
			defer again.Close()

			convey.Convey("Then migrations are not reapplied and data survives", func() {
				rec, err := again.Read(ctx, storage.PlayerKey(uid))
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Kind, convey.ShouldEqual, storage.KindPlayer)
			})
		})
	})

	convey.Convey("Given a migrated sqlite database", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "ranks.sqlite")
		s, err := storage.OpenSQL(ctx, storage.DialectSQLite, path)
		convey.So(err, convey.ShouldBeNil)
		convey.So(storage.Put(ctx, s, storage.KindRank, storage.RankKey(0), rankBody{Name: "Miner"}), convey.ShouldBeNil)
		convey.So(s.Close(), convey.ShouldBeNil)

		m, err := storage.OpenMigrator(ctx, storage.DialectSQLite, path)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the schema is at the first version and clean", func() {
			defer m.Close()
			version, dirty, err := m.Version()
			convey.So(err, convey.ShouldBeNil)
			convey.So(version, convey.ShouldEqual, 1)
			convey.So(dirty, convey.ShouldBeFalse)
			convey.So(m.Up(), convey.ShouldBeNil)
		})

		convey.Convey("When migrating down and reopening", func() {
			convey.So(m.Down(), convey.ShouldBeNil)
			version, _, err := m.Version()
			convey.So(err, convey.ShouldBeNil)
			convey.So(m.Close(), convey.ShouldBeNil)

			again, err := storage.OpenSQL(ctx, storage.DialectSQLite, path)
			convey.So(err, convey.ShouldBeNil)
			defer again.Close()

			convey.Convey("Then the records are gone and the table is recreated", func() {
				convey.So(version, convey.ShouldEqual, 0)
				_, err := again.Read(ctx, storage.RankKey(0))
				convey.So(errors.Is(err, storage.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given an unknown dialect", t, func() {
		_, mErr := storage.OpenMigrator(context.Background(), "mongodb", "x")
		convey.So(errors.Is(mErr, storage.ErrUnsupportedDialect), convey.ShouldBeTrue)

		_, err := storage.OpenSQL(context.Background(), "mongodb", "x")
		convey.So(errors.Is(err, storage.ErrUnsupportedDialect), convey.ShouldBeTrue)
	})
}

func TestRetrying(t *testing.T) {
	convey.Convey("Given a retrying store over a flaky memory store", t, func() {
		ctx := context.Background()
		mem := storage.NewMemStore()
		failures := 0
		mem.FailWith(func(op, key string) error {
			if op == "write" && failures < 2 {
				failures++
				return errors.New("transient")
			}
			return nil
		})
		s := storage.NewRetrying(mem, storage.WithMaxRetries(3), storage.WithBaseDelay(time.Millisecond))

		convey.Convey("When a write fails twice then succeeds", func() {
			err := s.Write(ctx, storage.Record{Key: "rank_0", Kind: storage.KindRank, Body: []byte("{}")})

			convey.Convey("Then the write is eventually stored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(failures, convey.ShouldEqual, 2)
				convey.So(mem.Writes(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the retry budget is exhausted", func() {
			s := storage.NewRetrying(mem, storage.WithMaxRetries(1), storage.WithBaseDelay(time.Millisecond))
			err := s.Write(ctx, storage.Record{Key: "rank_0", Kind: storage.KindRank, Body: []byte("{}")})

			convey.Convey("Then the persistence error is returned", func() {
				convey.So(errors.Is(err, storage.ErrPersistence), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When reading a missing key", func() {
			_, err := s.Read(ctx, "rank_42")

			convey.Convey("Then not found is returned without retrying", func() {
				convey.So(errors.Is(err, storage.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})
}
