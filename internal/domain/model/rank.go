// Package model contains the rank, ladder and player records shared by the
// registries, the rank-up engine and the adapters.
package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Rank is a purchasable step on one or more ladders.
// ID and Name never change once the rank is created.
type Rank struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Tag      string          `json:"tag"`
	Cost     decimal.Decimal `json:"cost"`
	Commands []string        `json:"rankUpCommands"`
}

// DefaultTag returns the tag a rank gets when none is supplied.
func DefaultTag(name string) string {
	return "[" + name + "]"
}

// NewRank builds a rank, defaulting the tag to "[name]".
func NewRank(id int, name, tag string, cost decimal.Decimal) (*Rank, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if cost.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeCost, cost)
	}
	if tag == "" {
		tag = DefaultTag(name)
	}
	return &Rank{ID: id, Name: name, Tag: tag, Cost: cost, Commands: []string{}}, nil
}

// SetCost replaces the rank cost.
func (r *Rank) SetCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeCost, cost)
	}
	r.Cost = cost
	return nil
}

// AddCommand appends a rank-up command. A leading slash is dropped.
func (r *Rank) AddCommand(cmd string) string {
	cmd = normalizeCommand(cmd)
	r.Commands = append(r.Commands, cmd)
	return cmd
}

// RemoveCommand removes the first matching command and reports whether one was found.
func (r *Rank) RemoveCommand(cmd string) bool {
	cmd = normalizeCommand(cmd)
	i := slices.Index(r.Commands, cmd)
	if i < 0 {
		return false
	}
	r.Commands = slices.Delete(r.Commands, i, i+1)
	return true
}

// Clone returns a deep copy.
func (r *Rank) Clone() *Rank {
	c := *r
	c.Commands = slices.Clone(r.Commands)
	if c.Commands == nil {
		c.Commands = []string{}
	}
	return &c
}

func normalizeCommand(cmd string) string {
	return strings.TrimPrefix(strings.TrimSpace(cmd), "/")
}
