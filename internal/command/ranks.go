package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	service "github.com/MC-Prison/PrisonRanks/internal/app"
	"github.com/MC-Prison/PrisonRanks/internal/domain/model"
	"github.com/MC-Prison/PrisonRanks/internal/domain/rankup"
	"github.com/MC-Prison/PrisonRanks/internal/domain/registry"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/shopspring/decimal"
)

// Backend is the set of service operations the ranks commands call.
type Backend interface {
	CreateRank(ctx context.Context, name string, cost decimal.Decimal, ladder, tag string) (*model.Rank, int, error)
	DeleteRank(ctx context.Context, name string) (service.RankRemoval, error)
	AddRankCommand(ctx context.Context, rankName, command string) (string, error)
	RemoveRankCommand(ctx context.Context, rankName, command string) error
	CreateLadder(ctx context.Context, name string) (*model.Ladder, error)
	DeleteLadder(ctx context.Context, name string) error
	LadderAddRank(ctx context.Context, ladder, rankName string, position *int) (int, error)
	LadderRemoveRank(ctx context.Context, ladder, rankName string) error
	RankUp(ctx context.Context, requestID string, subject rankup.Subject, ladder string) (rankup.Result, error)
	Rank(name string) (*model.Rank, error)
	DescribeRank(name string) (service.RankInfo, error)
	Ladder(name string) (*model.Ladder, error)
	Ladders() ([]*model.Ladder, error)
	LadderSteps(name string) ([]registry.Step, error)
}

const internalError = "An error occurred. Check the console for details."

// Permission nodes checked by the ranks commands.
const (
	PermUser  = "ranks.user"
	PermAdmin = "ranks.admin"
)

// DefaultPlayerPermissions is granted to players whose permissions are not
// supplied by the caller.
var DefaultPlayerPermissions = []string{PermUser}

// RankUpPermission is the node needed to rank up on ladder. The default
// ladder needs none beyond the rankup command itself.
func RankUpPermission(ladder string) string {
	return "ranks.rankup." + model.NormalizeLadderName(ladder)
}

func canRankUpOn(sender Sender, ladder string) bool {
	ladder = model.NormalizeLadderName(ladder)
	return ladder == "" || ladder == model.DefaultLadder || sender.Has(RankUpPermission(ladder))
}

type ranksCommands struct {
	backend Backend
	log     logger.Logger
}

// NewRanksTable builds the table of rank, ladder and rank-up commands.
func NewRanksTable(backend Backend, opts ...Option) *Table {
	t := NewTable(opts...)
	rc := &ranksCommands{backend: backend, log: t.logger}

	ladder := func(def string) Param { return Param{Name: "ladder", Default: def} }
	name := Param{Name: "name"}
	rank := Param{Name: "rank"}
	cmd := Param{Name: "command", Rest: true}

	user := []string{PermUser, PermAdmin}
	admin := []string{PermAdmin}

	t.Register(&Command{Identifier: "rankup", Description: "Ranks up to the next rank.",
		Params: []Param{ladder(model.DefaultLadder)}, OnlyPlayers: true, Permissions: user, Handler: rc.rankUp})
	t.Register(&Command{Identifier: "ranks", Description: "Shows the ranks of a ladder, or the help for admins.",
		Params: []Param{ladder(model.DefaultLadder)}, Permissions: user,
		Handler: func(ctx context.Context, sender Sender, args Args) Reply {
			if sender.Has(PermAdmin) {
				return usage(t, sender)
			}
			return rc.list(ctx, sender, args)
		}})
	t.Register(&Command{Identifier: "ranks help", Description: "Lists the ranks commands.",
		Permissions: user,
		Handler:     func(_ context.Context, sender Sender, _ Args) Reply { return usage(t, sender) }})
	t.Register(&Command{Identifier: "ranks create", Description: "Creates a new rank.",
		Params: []Param{name, {Name: "cost", Kind: KindDecimal}, ladder(model.DefaultLadder), {Name: "tag", Default: "none"}},
		Permissions: admin, Handler: rc.create})
	t.Register(&Command{Identifier: "ranks delete", Description: "Removes a rank.",
		Params: []Param{name}, Permissions: admin, Handler: rc.delete})
	t.Register(&Command{Identifier: "ranks list", Description: "Lists the ranks of a ladder.",
		Params: []Param{ladder(model.DefaultLadder)}, Permissions: user, Handler: rc.list})
	t.Register(&Command{Identifier: "ranks info", Description: "Information about a rank.",
		Params: []Param{name}, Permissions: user, Handler: rc.info})
	t.Register(&Command{Identifier: "ranks command add", Description: "Adds a command to a rank.",
		Params: []Param{rank, cmd}, Permissions: admin, Handler: rc.commandAdd})
	t.Register(&Command{Identifier: "ranks command remove", Description: "Removes a command from a rank.",
		Params: []Param{rank, cmd}, Permissions: admin, Handler: rc.commandRemove})

	t.Register(&Command{Identifier: "ranks ladder create", Description: "Creates a new rank ladder.",
		Params: []Param{name}, Permissions: admin, Handler: rc.ladderCreate})
	t.Register(&Command{Identifier: "ranks ladder delete", Description: "Deletes a rank ladder.",
		Params: []Param{name}, Permissions: admin, Handler: rc.ladderDelete})
	t.Register(&Command{Identifier: "ranks ladder list", Description: "Lists all rank ladders.",
		Permissions: admin, Handler: rc.ladderList})
	t.Register(&Command{Identifier: "ranks ladder info", Description: "Lists the ranks within a ladder.",
		Params: []Param{name}, Permissions: admin, Handler: rc.ladderInfo})
	t.Register(&Command{Identifier: "ranks ladder addrank", Description: "Adds a rank to a ladder.",
		Params:      []Param{ladder(""), rank, {Name: "position", Kind: KindInt, Optional: true}},
		Permissions: admin, Handler: rc.ladderAddRank})
	t.Register(&Command{Identifier: "ranks ladder delrank", Description: "Removes a rank from a ladder.",
		Params: []Param{ladder(""), rank}, Permissions: admin, Handler: rc.ladderDelRank})
	return t
}

// usage lists the commands sender may run.
func usage(t *Table, sender Sender) Reply {
	r := Reply{OK: true}
	for _, c := range t.Commands() {
		if !c.Allows(sender) {
			continue
		}
		r.Lines = append(r.Lines, fmt.Sprintf("/%s - %s", c.Usage(), c.Description))
	}
	return r
}

func (rc *ranksCommands) internal(ctx context.Context, what string, err error) Reply {
	rc.log.Error(ctx, what, logger.Error(err))
	return refuse(internalError)
}

func (rc *ranksCommands) rankUp(ctx context.Context, sender Sender, args Args) Reply {
	ladder := args.String("ladder")
	if !canRankUpOn(sender, ladder) {
		return refuse("You need the permission '%s' to rank up on this ladder.", RankUpPermission(ladder))
	}
	res, err := rc.backend.RankUp(ctx, "", rankup.Subject{UID: sender.UID, Name: sender.Name}, ladder)
	if err != nil {
		return rc.internal(ctx, "rankup", err)
	}
	switch res.Status {
	case rankup.Success:
		reply := ok("Congratulations! You have ranked up to rank '%s'.", res.Rank.Name)
		if res.CommandsDropped > 0 {
			reply.Lines = append(reply.Lines, fmt.Sprintf("%d rank-up command(s) could not be run. Please tell a staff member.", res.CommandsDropped))
		}
		return reply
	case rankup.CantAfford:
		return refuse("You don't have enough money to rank up! The next rank costs %s.", dollars(res.Cost))
	case rankup.Highest:
		return refuse("You are already at the highest rank!")
	case rankup.NoRanks:
		return refuse("There are no ranks in this ladder.")
	case rankup.NoSuchLadder:
		return refuse("The ladder '%s' does not exist.", ladder)
	default:
		rc.log.Error(ctx, "rankup failed", logger.String("uid", sender.UID.String()), logger.Error(res.Err))
		return refuse("Failed to retrieve or write data. Your files may be corrupted. Alert a server administrator.")
	}
}

func (rc *ranksCommands) create(ctx context.Context, _ Sender, args Args) Reply {
	name, ladder := args.String("name"), args.String("ladder")
	_, _, err := rc.backend.CreateRank(ctx, name, args.Decimal("cost"), ladder, args.String("tag"))
	switch {
	case err == nil:
		return ok("Your new rank, '%s', was created in the ladder '%s'.", name, model.NormalizeLadderName(ladder))
	case errors.Is(err, registry.ErrDuplicateName):
		return refuse("A rank by this name already exists. Try a different name.")
	case errors.Is(err, registry.ErrNotFound):
		return refuse("A ladder by the name of '%s' does not exist.", ladder)
	case errors.Is(err, model.ErrNegativeCost), errors.Is(err, model.ErrEmptyName):
		return refuse("The rank could not be created: %s.", err)
	default:
		return rc.internal(ctx, "create rank", err)
	}
}

func (rc *ranksCommands) delete(ctx context.Context, _ Sender, args Args) Reply {
	name := args.String("name")
	_, err := rc.backend.DeleteRank(ctx, name)
	switch {
	case err == nil:
		return ok("The rank '%s' has been removed successfully.", name)
	case errors.Is(err, registry.ErrNotFound):
		return refuse("The rank '%s' does not exist.", name)
	case errors.Is(err, service.ErrLastDefaultRank):
		return refuse("You can't remove this rank because it's the only rank in the default ladder.")
	default:
		rc.log.Error(ctx, "delete rank", logger.String("rank", name), logger.Error(err))
		return refuse("The rank '%s' could not be deleted due to an error.", name)
	}
}

func (rc *ranksCommands) list(ctx context.Context, sender Sender, args Args) Reply {
	name := args.String("ladder")
	steps, err := rc.backend.LadderSteps(name)
	if errors.Is(err, registry.ErrNotFound) {
		return refuse("The ladder '%s' doesn't exist.", name)
	}
	if err != nil {
		return rc.internal(ctx, "list ranks", err)
	}
	name = model.NormalizeLadderName(name)
	r := Reply{OK: true, Lines: []string{"Ranks in " + name}}
	for _, s := range steps {
		r.Lines = append(r.Lines, fmt.Sprintf("#%d - %s - %s", s.Position, s.Rank.Tag, dollars(s.Rank.Cost)))
	}

	ladders, err := rc.backend.Ladders()
	if err != nil {
		return rc.internal(ctx, "list ladders", err)
	}
	admin := sender.Has(PermAdmin)
	var others []string
	for _, ld := range ladders {
		if ld.Name == name || !(admin || canRankUpOn(sender, ld.Name)) {
			continue
		}
		if admin {
			others = append(others, "/ranks list "+ld.Name)
		} else {
			others = append(others, "/ranks "+ld.Name)
		}
	}
	if len(others) > 0 {
		r.Lines = append(r.Lines, "You may also try "+strings.Join(others, ", ")+".")
	}
	return r
}

func (rc *ranksCommands) info(ctx context.Context, sender Sender, args Args) Reply {
	name := args.String("name")
	info, err := rc.backend.DescribeRank(name)
	if errors.Is(err, registry.ErrNotFound) {
		return refuse("The rank '%s' doesn't exist.", name)
	}
	if err != nil {
		return rc.internal(ctx, "rank info", err)
	}
	label := "Ladder"
	if len(info.Ladders) != 1 {
		label = "Ladders"
	}
	r := Reply{OK: true, Lines: []string{
		"Rank " + info.Rank.Tag,
		fmt.Sprintf("%s: %s", label, strings.Join(info.Ladders, ", ")),
		"Cost: " + dollars(info.Rank.Cost),
	}}
	if sender.Has(PermAdmin) {
		r.Lines = append(r.Lines,
			"[Admin Only]",
			fmt.Sprintf("Rank ID: %d", info.Rank.ID),
			"Rank Name: "+info.Rank.Name,
			fmt.Sprintf("There are %d players with this rank.", info.Players),
		)
	}
	return r
}

func (rc *ranksCommands) commandAdd(ctx context.Context, _ Sender, args Args) Reply {
	name := args.String("rank")
	added, err := rc.backend.AddRankCommand(ctx, name, args.String("command"))
	switch {
	case err == nil:
		return ok("Added command '%s' to the rank '%s'.", added, name)
	case errors.Is(err, registry.ErrNotFound):
		return refuse("The rank '%s' does not exist.", name)
	default:
		return rc.internal(ctx, "add rank command", err)
	}
}

func (rc *ranksCommands) commandRemove(ctx context.Context, _ Sender, args Args) Reply {
	name, cmd := args.String("rank"), args.String("command")
	err := rc.backend.RemoveRankCommand(ctx, name, cmd)
	switch {
	case err == nil:
		return ok("Removed command '%s' from the rank '%s'.", strings.TrimPrefix(cmd, "/"), name)
	case errors.Is(err, registry.ErrNotFound):
		return refuse("The rank '%s' does not exist.", name)
	case errors.Is(err, service.ErrNoSuchCommand):
		return refuse("The rank doesn't contain that command. Nothing was changed.")
	default:
		return rc.internal(ctx, "remove rank command", err)
	}
}

func (rc *ranksCommands) ladderCreate(ctx context.Context, _ Sender, args Args) Reply {
	name := args.String("name")
	ld, err := rc.backend.CreateLadder(ctx, name)
	switch {
	case err == nil:
		return ok("The ladder '%s' has been created.", ld.Name)
	case errors.Is(err, registry.ErrDuplicateName):
		return refuse("A ladder with the name '%s' already exists.", name)
	default:
		return rc.internal(ctx, "create ladder", err)
	}
}

func (rc *ranksCommands) ladderDelete(ctx context.Context, _ Sender, args Args) Reply {
	name := args.String("name")
	err := rc.backend.DeleteLadder(ctx, name)
	switch {
	case err == nil:
		return ok("The ladder '%s' has been deleted.", name)
	case errors.Is(err, registry.ErrNotFound):
		return refuse("The ladder '%s' doesn't exist.", name)
	case errors.Is(err, service.ErrDefaultLadder):
		return refuse("You can't delete the default ladder.")
	default:
		rc.log.Error(ctx, "delete ladder", logger.String("ladder", name), logger.Error(err))
		return refuse("An error occurred while removing your ladder. Check the console for details.")
	}
}

func (rc *ranksCommands) ladderList(ctx context.Context, _ Sender, _ Args) Reply {
	ladders, err := rc.backend.Ladders()
	if err != nil {
		return rc.internal(ctx, "list ladders", err)
	}
	r := Reply{OK: true, Lines: []string{"Ladders"}}
	for _, ld := range ladders {
		r.Lines = append(r.Lines, "- "+ld.Name)
	}
	return r
}

func (rc *ranksCommands) ladderInfo(ctx context.Context, _ Sender, args Args) Reply {
	name := args.String("name")
	steps, err := rc.backend.LadderSteps(name)
	if errors.Is(err, registry.ErrNotFound) {
		return refuse("The ladder '%s' doesn't exist.", name)
	}
	if err != nil {
		return rc.internal(ctx, "ladder info", err)
	}
	r := Reply{OK: true, Lines: []string{model.NormalizeLadderName(name), "This ladder contains the following ranks:"}}
	for _, s := range steps {
		r.Lines = append(r.Lines, fmt.Sprintf("#%d - %s", s.Position, s.Rank.Name))
	}
	return r
}

func (rc *ranksCommands) ladderAddRank(ctx context.Context, _ Sender, args Args) Reply {
	ladderName, rankName := args.String("ladder"), args.String("rank")
	ld, err := rc.backend.Ladder(ladderName)
	if err != nil {
		return refuse("The ladder '%s' doesn't exist.", ladderName)
	}
	rk, err := rc.backend.Rank(rankName)
	if err != nil {
		return refuse("The rank '%s' doesn't exist.", rankName)
	}
	var position *int
	if p, given := args.Int("position"); given {
		position = &p
	}

	pos, err := rc.backend.LadderAddRank(ctx, ld.Name, rk.Name, position)
	switch {
	case err == nil:
		return ok("Added rank '%s' to ladder '%s' at position %d.", rk.Name, ld.Name, pos)
	case errors.Is(err, registry.ErrDuplicateRank):
		return refuse("The rank '%s' is already on the ladder '%s'.", rk.Name, ld.Name)
	case errors.Is(err, model.ErrInvalidPosition):
		return refuse("The position must not be negative.")
	default:
		rc.log.Error(ctx, "add rank to ladder", logger.String("ladder", ld.Name), logger.Error(err))
		return refuse("An error occurred while adding a rank to your ladder. Check the console for details.")
	}
}

func (rc *ranksCommands) ladderDelRank(ctx context.Context, _ Sender, args Args) Reply {
	ladderName, rankName := args.String("ladder"), args.String("rank")
	ld, err := rc.backend.Ladder(ladderName)
	if err != nil {
		return refuse("The ladder '%s' doesn't exist.", ladderName)
	}
	rk, err := rc.backend.Rank(rankName)
	if err != nil {
		return refuse("The rank '%s' doesn't exist.", rankName)
	}

	err = rc.backend.LadderRemoveRank(ctx, ld.Name, rk.Name)
	switch {
	case err == nil:
		return ok("Removed rank '%s' from ladder '%s'.", rk.Name, ld.Name)
	case errors.Is(err, registry.ErrRankNotOnLadder):
		return refuse("The rank '%s' is not on the ladder '%s'.", rk.Name, ld.Name)
	default:
		rc.log.Error(ctx, "remove rank from ladder", logger.String("ladder", ld.Name), logger.Error(err))
		return refuse("An error occurred while removing a rank from your ladder. Check the console for details.")
	}
}
