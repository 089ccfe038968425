package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MC-Prison/PrisonRanks/internal/command"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// errRefused is returned when a command ran but was refused, so the
// process exits non-zero.
var errRefused = errors.New("command refused")

type execConfig struct {
	uid         string
	name        string
	permissions []string
}

func newExecCmd() *cobra.Command {
	cfg := &execConfig{}
	cmd := &cobra.Command{
		Use:   "exec <command line>",
		Short: "Run one ranks command against the store",
		Long: `Run a single line from the command table, e.g.

  prisonranks exec ranks create Miner 100
  prisonranks exec --uid <uuid> --name Steve rankup
  prisonranks exec --uid <uuid> --permission ranks.user,ranks.rankup.mines rankup mines

Without --uid the line runs as the console. With --uid the player is
joined first, so rankup works for players not seen before, and holds
the nodes given by --permission.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			sender := command.Console
			if cfg.uid != "" {
				uid, err := uuid.Parse(cfg.uid)
				if err != nil {
					return fmt.Errorf("invalid --uid: %w", err)
				}
				if _, _, err := deps.svc.Join(cmd.Context(), uid); err != nil {
					return fmt.Errorf("join %s: %w", uid, err)
				}
				sender = command.Sender{UID: uid, Name: cfg.name, Permissions: cfg.permissions}
			}

			table := command.NewRanksTable(deps.svc, command.WithLogger(deps.log.Named("command")))
			reply, err := table.Execute(cmd.Context(), sender, strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, line := range reply.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if !reply.OK {
				return errRefused
			}
			return nil
		},
	}
	// Words after the first positional belong to the command line.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&cfg.uid, "uid", "", "run as this player uuid")
	cmd.Flags().StringVar(&cfg.name, "name", "", "player name substituted into rank-up commands")
	cmd.Flags().StringSliceVar(&cfg.permissions, "permission", command.DefaultPlayerPermissions, "permission nodes held by the --uid player")
	return cmd
}
