// Package storage persists rank, ladder, player and balance records as
// JSON bodies under stable keys such as rank_3 or player_<uuid>.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Kind groups records for ReadAll.
type Kind string

// Record kinds.
const (
	KindRank    Kind = "rank"
	KindLadder  Kind = "ladder"
	KindPlayer  Kind = "player"
	KindBalance Kind = "balance"
)

// Record is one persisted entity.
type Record struct {
	Key  string
	Kind Kind
	Body []byte
}

// Store is the persistent mirror of the in-memory registries.
type Store interface {
	// Read returns the record stored under key or ErrNotFound.
	Read(ctx context.Context, key string) (Record, error)
	// ReadAll returns every record of kind ordered by key.
	ReadAll(ctx context.Context, kind Kind) ([]Record, error)
	// Write inserts or replaces a record.
	Write(ctx context.Context, rec Record) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key builds the record key for kind and id.
func Key(kind Kind, id string) string { return string(kind) + "_" + id }

// RankKey returns rank_<id>.
func RankKey(id int) string { return Key(KindRank, strconv.Itoa(id)) }

// LadderKey returns ladder_<id>.
func LadderKey(id int) string { return Key(KindLadder, strconv.Itoa(id)) }

// PlayerKey returns player_<uid>.
func PlayerKey(uid uuid.UUID) string { return Key(KindPlayer, uid.String()) }

// BalanceKey returns balance_<uid>.
func BalanceKey(uid uuid.UUID) string { return Key(KindBalance, uid.String()) }

// Put encodes v as JSON and writes it under key.
func Put(ctx context.Context, s Store, kind Kind, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return oops.Code("STORE_ENCODE").With("key", key).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return s.Write(ctx, Record{Key: key, Kind: kind, Body: body})
}

// Get reads key and decodes its JSON body into v.
func Get(ctx context.Context, s Store, key string, v any) error {
	rec, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rec.Body, v); err != nil {
		return oops.Code("STORE_DECODE").With("key", key).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return nil
}

// LoadAll decodes every record of kind with newT and returns them in key order.
func LoadAll[T any](ctx context.Context, s Store, kind Kind, newT func() *T) ([]*T, error) {
	recs, err := s.ReadAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		v := newT()
		if err := json.Unmarshal(rec.Body, v); err != nil {
			return nil, oops.Code("STORE_DECODE").With("key", rec.Key).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
		}
		out = append(out, v)
	}
	return out, nil
}
