// Package command maps text commands such as "ranks create Miner 100" onto
// service operations. The table is built explicitly at startup; every entry
// declares its arguments with a kind and an optional default.
package command

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxIdentifierWords is the longest identifier, e.g. "ranks ladder addrank".
const maxIdentifierWords = 3

// Kind is the type an argument is parsed into.
type Kind int

// Argument kinds.
const (
	KindString Kind = iota
	KindDecimal
	KindInt
)

// Param declares one positional argument.
type Param struct {
	Name string
	Kind Kind
	// Default is used when the argument is omitted. Empty means required
	// unless Optional is set.
	Default  string
	Optional bool
	// Rest makes the argument swallow every remaining word.
	Rest bool
}

func (p Param) usage() string {
	if p.Default != "" || p.Optional {
		return "[" + p.Name + "]"
	}
	return "<" + p.Name + ">"
}

// Sender is whoever typed the command. The console has a nil UID.
type Sender struct {
	UID  uuid.UUID
	Name string
	// Permissions are the nodes granted to a player, e.g. "ranks.admin".
	// "*" grants every node.
	Permissions []string
}

// Console is the sender used for server console and API admin calls.
var Console = Sender{Name: "console"}

// IsPlayer reports whether the sender is a player.
func (s Sender) IsPlayer() bool { return s.UID != uuid.Nil }

// Has reports whether the sender holds perm. The console holds every node.
func (s Sender) Has(perm string) bool {
	if !s.IsPlayer() {
		return true
	}
	for _, p := range s.Permissions {
		if p == "*" || strings.EqualFold(p, perm) {
			return true
		}
	}
	return false
}

// Reply is the text shown to the sender. OK is false when the command was
// understood but refused, e.g. an unknown rank.
type Reply struct {
	Lines []string `json:"lines"`
	OK    bool     `json:"ok"`
}

func ok(format string, args ...any) Reply {
	return Reply{Lines: []string{fmt.Sprintf(format, args...)}, OK: true}
}

func refuse(format string, args ...any) Reply {
	return Reply{Lines: []string{fmt.Sprintf(format, args...)}}
}

// Handler runs a parsed command.
type Handler func(ctx context.Context, sender Sender, args Args) Reply

// Command is one table entry.
type Command struct {
	Identifier  string
	Description string
	Params      []Param
	OnlyPlayers bool
	// Permissions lists the nodes that allow the command; any one is enough.
	// Empty means everyone.
	Permissions []string
	Handler     Handler
}

// Allows reports whether sender may run the command.
func (c *Command) Allows(sender Sender) bool {
	if len(c.Permissions) == 0 {
		return true
	}
	for _, p := range c.Permissions {
		if sender.Has(p) {
			return true
		}
	}
	return false
}

// Usage renders the identifier and its parameters.
func (c *Command) Usage() string {
	parts := []string{c.Identifier}
	for _, p := range c.Params {
		parts = append(parts, p.usage())
	}
	return strings.Join(parts, " ")
}

// Args holds parsed argument values by parameter name.
type Args map[string]any

// String returns a string argument.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Decimal returns a decimal argument.
func (a Args) Decimal(name string) decimal.Decimal {
	d, _ := a[name].(decimal.Decimal)
	return d
}

// Int returns an int argument and whether it was given.
func (a Args) Int(name string) (int, bool) {
	n, ok := a[name].(int)
	return n, ok
}

// Table dispatches input lines to commands.
type Table struct {
	commands map[string]*Command
	logger   logger.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l logger.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTable returns an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{commands: make(map[string]*Command), logger: logger.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds c. Identifiers are matched case-insensitively.
func (t *Table) Register(c *Command) {
	t.commands[strings.ToLower(c.Identifier)] = c
}

// Lookup finds a command by identifier.
func (t *Table) Lookup(identifier string) (*Command, bool) {
	c, ok := t.commands[strings.ToLower(strings.TrimSpace(identifier))]
	return c, ok
}

// Commands lists the table sorted by identifier.
func (t *Table) Commands() []*Command {
	out := make([]*Command, 0, len(t.commands))
	for _, c := range t.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// match finds the longest identifier prefixing words.
func (t *Table) match(words []string) (*Command, []string, bool) {
	for n := min(maxIdentifierWords, len(words)); n > 0; n-- {
		id := strings.ToLower(strings.Join(words[:n], " "))
		if c, ok := t.commands[id]; ok {
			return c, words[n:], true
		}
	}
	return nil, nil, false
}

// Execute parses line and runs the matching command.
func (t *Table) Execute(ctx context.Context, sender Sender, line string) (Reply, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return Reply{}, ErrUnknownCommand
	}
	words[0] = strings.TrimPrefix(words[0], "/")

	c, rest, found := t.match(words)
	if !found {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownCommand, strings.Join(words, " "))
	}
	if c.OnlyPlayers && !sender.IsPlayer() {
		return Reply{}, fmt.Errorf("%w: %s", ErrPlayerOnly, c.Identifier)
	}
	if !c.Allows(sender) {
		return Reply{}, fmt.Errorf("%w: %s needs %s", ErrPermission, c.Identifier, strings.Join(c.Permissions, " or "))
	}
	args, err := bind(c, rest)
	if err != nil {
		return Reply{}, err
	}
	t.logger.Debug(ctx, "command", logger.String("identifier", c.Identifier), logger.String("sender", sender.Name))
	return c.Handler(ctx, sender, args), nil
}

func bind(c *Command, words []string) (Args, error) {
	args := make(Args, len(c.Params))
	i := 0
	for _, p := range c.Params {
		var raw string
		switch {
		case p.Rest && i < len(words):
			raw = strings.Join(words[i:], " ")
			i = len(words)
		case i < len(words):
			raw = words[i]
			i++
		case p.Default != "":
			raw = p.Default
		case p.Optional:
			continue
		default:
			return nil, fmt.Errorf("%w: %s", ErrUsage, c.Usage())
		}
		v, err := parse(p, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUsage, c.Usage(), err)
		}
		args[p.Name] = v
	}
	if i < len(words) {
		return nil, fmt.Errorf("%w: %s", ErrUsage, c.Usage())
	}
	return args, nil
}

func parse(p Param, raw string) (any, error) {
	switch p.Kind {
	case KindDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number, got %q", p.Name, raw)
		}
		return d, nil
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a whole number, got %q", p.Name, raw)
		}
		return n, nil
	default:
		return raw, nil
	}
}

// dollars formats an amount as "$1,234.50".
func dollars(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "$" + b.String() + "." + frac
}
