package command_test

import (
	"context"
	"errors"
	"testing"

	service "github.com/MC-Prison/PrisonRanks/internal/app"
	"github.com/MC-Prison/PrisonRanks/internal/command"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func newTable(ctx context.Context) (*command.Table, *service.Service) {
	svc := service.New(
		service.WithWorkerCount(1),
		service.WithLogger(logger.Nop()),
		service.WithStartingBalance(decimal.NewFromInt(150)),
	)
	So(svc.Start(ctx), ShouldBeNil)
	return command.NewRanksTable(svc), svc
}

func run(ctx context.Context, t *command.Table, sender command.Sender, line string) command.Reply {
	reply, err := t.Execute(ctx, sender, line)
	So(err, ShouldBeNil)
	return reply
}

func TestRanksCommands(t *testing.T) {
	ctx := context.Background()

	Convey("Given the ranks command table over a fresh service", t, func() {
		table, svc := newTable(ctx)
		defer svc.Stop()

		Convey("When creating a rank with defaults", func() {
			reply := run(ctx, table, command.Console, "ranks create Miner 100")

			Convey("Then it lands on the default ladder with the default tag", func() {
				So(reply.OK, ShouldBeTrue)
				So(reply.Lines[0], ShouldEqual, "Your new rank, 'Miner', was created in the ladder 'default'.")
				rk, err := svc.Rank("Miner")
				So(err, ShouldBeNil)
				So(rk.Tag, ShouldEqual, "[Miner]")
			})

			Convey("And creating it again is refused", func() {
				reply := run(ctx, table, command.Console, "ranks create Miner 5")
				So(reply.OK, ShouldBeFalse)
				So(reply.Lines[0], ShouldEqual, "A rank by this name already exists. Try a different name.")
			})

			Convey("And the list shows positions, tags and costs", func() {
				run(ctx, table, command.Console, "ranks create Digger 1500 default &7Digger")
				reply := run(ctx, table, command.Console, "ranks list")
				So(reply.Lines, ShouldResemble, []string{
					"Ranks in default",
					"#0 - [Miner] - $100.00",
					"#1 - &7Digger - $1,500.00",
				})
			})

			Convey("And info describes the rank", func() {
				reply := run(ctx, table, command.Console, "ranks info Miner")
				So(reply.Lines[1], ShouldEqual, "Ladder: default")
				So(reply.Lines[2], ShouldEqual, "Cost: $100.00")
				So(reply.Lines[3], ShouldEqual, "[Admin Only]")
				So(reply.Lines[6], ShouldEqual, "There are 0 players with this rank.")
			})

			Convey("And it cannot be deleted while it is the only default rank", func() {
				reply := run(ctx, table, command.Console, "ranks delete Miner")
				So(reply.OK, ShouldBeFalse)
				So(reply.Lines[0], ShouldEqual, "You can't remove this rank because it's the only rank in the default ladder.")
			})
		})

		Convey("When creating a rank on a missing ladder or with a bad cost", func() {
			missing := run(ctx, table, command.Console, "ranks create Ghost 1 nowhere")
			_, err := table.Execute(ctx, command.Console, "ranks create Ghost lots")

			Convey("Then both are refused", func() {
				So(missing.Lines[0], ShouldEqual, "A ladder by the name of 'nowhere' does not exist.")
				So(errors.Is(err, command.ErrUsage), ShouldBeTrue)
			})
		})

		Convey("When a player ranks up", func() {
			run(ctx, table, command.Console, "ranks create Miner 100")
			run(ctx, table, command.Console, "ranks create Digger 500")
			steve := command.Sender{UID: uuid.New(), Name: "Steve", Permissions: command.DefaultPlayerPermissions}
			_, _, err := svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)

			first := run(ctx, table, steve, "rankup")
			second := run(ctx, table, steve, "rankup default")

			Convey("Then the first rank is bought and the second is too expensive", func() {
				So(first.OK, ShouldBeTrue)
				So(first.Lines[0], ShouldEqual, "Congratulations! You have ranked up to rank 'Miner'.")
				So(second.OK, ShouldBeFalse)
				So(second.Lines[0], ShouldEqual, "You don't have enough money to rank up! The next rank costs $500.00.")
			})

			Convey("And an unknown ladder is reported", func() {
				steve.Permissions = []string{command.PermUser, command.RankUpPermission("mines")}
				reply := run(ctx, table, steve, "rankup mines")
				So(reply.Lines[0], ShouldEqual, "The ladder 'mines' does not exist.")
			})

			Convey("And the console cannot rank up", func() {
				_, err := table.Execute(ctx, command.Console, "rankup")
				So(errors.Is(err, command.ErrPlayerOnly), ShouldBeTrue)
			})
		})

		Convey("When ranking up on an empty ladder", func() {
			steve := command.Sender{UID: uuid.New(), Name: "Steve", Permissions: command.DefaultPlayerPermissions}
			_, _, err := svc.Join(ctx, steve.UID)
			So(err, ShouldBeNil)
			reply := run(ctx, table, steve, "rankup")

			Convey("Then there are no ranks", func() {
				So(reply.Lines[0], ShouldEqual, "There are no ranks in this ladder.")
			})
		})

		Convey("When editing rank commands", func() {
			run(ctx, table, command.Console, "ranks create Miner 100")
			added := run(ctx, table, command.Console, "ranks command add Miner /give {player} diamond 1")
			removed := run(ctx, table, command.Console, "ranks command remove Miner give {player} diamond 1")
			again := run(ctx, table, command.Console, "ranks command remove Miner give {player} diamond 1")

			Convey("Then commands keep every word and drop the slash", func() {
				So(added.Lines[0], ShouldEqual, "Added command 'give {player} diamond 1' to the rank 'Miner'.")
				So(removed.OK, ShouldBeTrue)
				So(again.Lines[0], ShouldEqual, "The rank doesn't contain that command. Nothing was changed.")
			})
		})

		Convey("When managing ladders", func() {
			run(ctx, table, command.Console, "ranks create Miner 100")
			created := run(ctx, table, command.Console, "ranks ladder create Mines")
			dup := run(ctx, table, command.Console, "ranks ladder create mines")
			added := run(ctx, table, command.Console, "ranks ladder addRank mines Miner")
			twice := run(ctx, table, command.Console, "ranks ladder addrank mines Miner 4")

			Convey("Then the ladder is created once and holds the rank once", func() {
				So(created.Lines[0], ShouldEqual, "The ladder 'mines' has been created.")
				So(dup.Lines[0], ShouldEqual, "A ladder with the name 'mines' already exists.")
				So(added.Lines[0], ShouldEqual, "Added rank 'Miner' to ladder 'mines' at position 0.")
				So(twice.Lines[0], ShouldEqual, "The rank 'Miner' is already on the ladder 'mines'.")
			})

			Convey("And the ladder list and info show it", func() {
				list := run(ctx, table, command.Console, "ranks ladder list")
				So(list.Lines, ShouldResemble, []string{"Ladders", "- default", "- mines"})
				info := run(ctx, table, command.Console, "ranks ladder info mines")
				So(info.Lines[2], ShouldEqual, "#0 - Miner")
			})

			Convey("And the rank can be removed from the ladder once", func() {
				first := run(ctx, table, command.Console, "ranks ladder delrank mines Miner")
				second := run(ctx, table, command.Console, "ranks ladder delrank mines Miner")
				So(first.Lines[0], ShouldEqual, "Removed rank 'Miner' from ladder 'mines'.")
				So(second.Lines[0], ShouldEqual, "The rank 'Miner' is not on the ladder 'mines'.")
			})

			Convey("And only the non-default ladder can be deleted", func() {
				So(run(ctx, table, command.Console, "ranks ladder delete mines").OK, ShouldBeTrue)
				reply := run(ctx, table, command.Console, "ranks ladder delete default")
				So(reply.Lines[0], ShouldEqual, "You can't delete the default ladder.")
				gone := run(ctx, table, command.Console, "ranks ladder info mines")
				So(gone.Lines[0], ShouldEqual, "The ladder 'mines' doesn't exist.")
			})
		})

		Convey("When players with different permissions use the table", func() {
			run(ctx, table, command.Console, "ranks create Miner 100")
			run(ctx, table, command.Console, "ranks create Guard 10 default")
			run(ctx, table, command.Console, "ranks ladder create mines")
			run(ctx, table, command.Console, "ranks ladder addrank mines Guard")
			user := command.Sender{UID: uuid.New(), Name: "Steve", Permissions: command.DefaultPlayerPermissions}
			nobody := command.Sender{UID: uuid.New(), Name: "Alex"}
			admin := command.Sender{UID: uuid.New(), Name: "Notch", Permissions: []string{command.PermAdmin}}
			_, _, err := svc.Join(ctx, user.UID)
			So(err, ShouldBeNil)

			Convey("Then a player without the user node is denied", func() {
				_, err := table.Execute(ctx, nobody, "ranks list")
				So(errors.Is(err, command.ErrPermission), ShouldBeTrue)
				_, err = table.Execute(ctx, user, "ranks create Thief 1")
				So(errors.Is(err, command.ErrPermission), ShouldBeTrue)
			})

			Convey("Then ranking up on another ladder needs its node", func() {
				denied := run(ctx, table, user, "rankup mines")
				So(denied.OK, ShouldBeFalse)
				So(denied.Lines[0], ShouldEqual, "You need the permission 'ranks.rankup.mines' to rank up on this ladder.")

				user.Permissions = append([]string{command.RankUpPermission("Mines")}, command.DefaultPlayerPermissions...)
				allowed := run(ctx, table, user, "rankup mines")
				So(allowed.OK, ShouldBeTrue)
				So(allowed.Lines[0], ShouldEqual, "Congratulations! You have ranked up to rank 'Guard'.")
			})

			Convey("Then the bare ranks command shows help to admins and the list to users", func() {
				help := run(ctx, table, admin, "ranks")
				So(help.Lines, ShouldContain, "/ranks create <name> <cost> [ladder] [tag] - Creates a new rank.")
				list := run(ctx, table, user, "ranks")
				So(list.Lines[0], ShouldEqual, "Ranks in default")
				So(list.Lines, ShouldNotContain, "You may also try /ranks mines.")
			})

			Convey("Then the list suggests only ladders the player may climb", func() {
				user.Permissions = []string{command.PermUser, "ranks.rankup.mines"}
				list := run(ctx, table, user, "ranks")
				So(list.Lines[len(list.Lines)-1], ShouldEqual, "You may also try /ranks mines.")
				staff := run(ctx, table, admin, "ranks list")
				So(staff.Lines[len(staff.Lines)-1], ShouldEqual, "You may also try /ranks list mines.")
			})

			Convey("Then info hides the admin lines from users", func() {
				info := run(ctx, table, user, "ranks info Miner")
				So(len(info.Lines), ShouldEqual, 3)
				So(info.Lines, ShouldNotContain, "[Admin Only]")
			})

			Convey("Then help lists only the commands the player may run", func() {
				help := run(ctx, table, user, "ranks help")
				So(len(help.Lines), ShouldEqual, 5)
				So(help.Lines, ShouldNotContain, "/ranks create <name> <cost> [ladder] [tag] - Creates a new rank.")
			})
		})

		Convey("When asking for help", func() {
			reply := run(ctx, table, command.Console, "ranks help")

			Convey("Then every command is listed with its usage", func() {
				So(len(reply.Lines), ShouldEqual, 15)
				So(reply.Lines, ShouldContain, "/ranks create <name> <cost> [ladder] [tag] - Creates a new rank.")
			})
		})
	})
}
