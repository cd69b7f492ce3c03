package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"sunday-scrims/internal/a2s"
	"sunday-scrims/internal/config"
	"sunday-scrims/internal/events"
	"sunday-scrims/internal/parser"
	"sunday-scrims/internal/rcon"
	"sunday-scrims/internal/tail"
	"sunday-scrims/internal/watcher"

	"github.com/spf13/cobra"
)

// newRconCmd sends one raw command to the configured server
func newRconCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rcon <command>",
		Short: "Send an RCON command to the configured server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Server.RconPassword == "" {
				return fmt.Errorf("rconPassword is not configured")
			}
			client := rcon.NewClient(rcon.ClientConfig{
				Address:  cfg.Server.RconAddress,
				Password: cfg.Server.RconPassword,
				Timeout:  cfg.RconTimeoutDuration(),
			}, slog.New(slog.NewTextHandler(io.Discard, nil)))
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.RconTimeoutDuration())
			defer cancel()

			response, err := client.Execute(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), response)
			return nil
		},
	}
}

// newQueryCmd prints the A2S info of a server
func newQueryCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "query [address]",
		Short: "Query server info over A2S",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := cfg.Server.QueryAddress
			if len(args) == 1 {
				address = args[0]
			}
			if address == "" {
				return fmt.Errorf("no address given and queryAddress is not configured")
			}

			info, err := a2s.NewClient(cfg.RconTimeoutDuration()).QueryInfo(cmd.Context(), address)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server: %s\n", info.Name)
			fmt.Fprintf(out, "Map: %s\n", info.Map)
			fmt.Fprintf(out, "Players: %d/%d (%d bots)\n", info.Players, info.MaxPlayers, info.Bots)
			fmt.Fprintf(out, "Version: %s\n", info.Version)
			return nil
		},
	}
}

// newReplayCmd parses a server log and prints the events it contains and the
// roster a restart would restore from it
func newReplayCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "replay <logfile>",
		Short: "Parse a CS2 server log and print the recognised events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayLog(cmd.OutOrStdout(), args[0], verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every event")
	return cmd
}

func replayLog(out io.Writer, path string, verbose bool) error {
	logParser := parser.NewLogParser(time.Local)
	builder := watcher.NewRosterBuilder()
	counts := make(map[events.Kind]int)

	lines, err := tail.NewFollower(path, 0).ReadLines(func(line string) {
		ev, ok := logParser.Parse(line)
		if !ok {
			return
		}
		counts[ev.Kind]++
		builder.Apply(ev)
		if verbose {
			fmt.Fprintf(out, "%s %-20s %s\n", ev.Time.Format(time.TimeOnly), ev.Kind, describe(ev))
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Lines: %d\n", lines)
	for _, kind := range []events.Kind{
		events.TypePlayerConnect,
		events.TypePlayerEntered,
		events.TypePlayerSwitchTeam,
		events.TypePlayerDisconnect,
		events.TypeChat,
		events.TypeMatchStart,
		events.TypeTeamScored,
		events.TypeGameOver,
	} {
		if counts[kind] > 0 {
			fmt.Fprintf(out, "%s: %d\n", kind, counts[kind])
		}
	}

	roster := builder.Roster()
	fmt.Fprintf(out, "Roster (%d players, ended=%v):\n", len(roster.Players), roster.Ended)
	for _, p := range roster.Players {
		fmt.Fprintf(out, "  %s %-4s %s\n", p.ID, p.Team, p.Name)
	}
	return nil
}

func describe(ev events.Event) string {
	switch ev.Kind {
	case events.TypeChat:
		return fmt.Sprintf("%s: %s", ev.Player.Name, ev.Message)
	case events.TypePlayerSwitchTeam:
		return fmt.Sprintf("%s %s -> %s", ev.Player.Name, ev.FromTeam, ev.Player.Team)
	case events.TypeMatchStart:
		return ev.Map
	case events.TypeTeamScored:
		return fmt.Sprintf("%s %d", ev.Team, ev.Score)
	case events.TypeGameOver:
		return fmt.Sprintf("%s CT %d : T %d", ev.Map, ev.CTScore, ev.TScore)
	}
	return fmt.Sprintf("%s (%s)", ev.Player.Name, ev.Player.ID)
}
