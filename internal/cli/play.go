package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-live/internal/client"
	"github.com/mcoot/tictactoe-live/internal/model"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Ready roster and direct challenges",
	}

	cmd.AddCommand(newPlayReadyCmd())
	cmd.AddCommand(newPlayUnreadyCmd())
	cmd.AddCommand(newPlayAvailableCmd())
	cmd.AddCommand(newPlayChallengeCmd())

	return cmd
}

func newPlayReadyCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "Declare yourself available and wait for a challenge",
		Long: `Open the push channel, join the ready roster and print it as it changes.
Readiness lasts only while this command runs. When someone challenges you the
new room is printed; with --watch the room is then followed to the end.

Press Ctrl+C to leave the roster.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible(cmd.Context())
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			sub := session.Subscribe(model.EventAvailablePlayers, model.EventGameInvite, model.EventGameStartedDirect)
			defer sub.Close()

			if err := api.SetReady(ctx); err != nil {
				return err
			}

			code, err := awaitMatch(ctx, sub)
			if err != nil || code == "" {
				return err
			}
			if !watch {
				return nil
			}
			return watchRoom(ctx, session, code, nil)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Follow the room once a challenge starts it")

	return cmd
}

// awaitMatch prints roster changes until a direct match starts, returning its code
func awaitMatch(ctx context.Context, sub *client.Subscription) (string, error) {
	out := NewOutput(cfg.Output)
	roster := client.NewRosterMirror()

	for {
		select {
		case <-ctx.Done():
			return "", nil
		case ev, ok := <-sub.Events():
			if !ok {
				return "", client.ErrNotConnected
			}
			switch ev.Event {
			case client.EventTerminated:
				return "", fmt.Errorf("session ended by the server, log in again: %w", ev.Err)
			case client.EventDisconnected:
				out.printLink(true, 0)
				continue
			case client.EventReconnectFailing:
				out.printLink(true, ev.Attempt)
				continue
			case client.EventReconnected:
				out.PrintMessage("Reconnected")
				// The server dropped us from the roster with the old channel
				roster.Apply(ev.Envelope)
				if err := api.SetReady(ctx); err != nil && !errors.Is(err, client.ErrTransient) {
					return "", err
				}
				if entries, err := api.Available(ctx); err == nil && roster.Load(entries) {
					out.Print(roster.Entries())
				}
				continue
			}

			if !roster.Apply(ev.Envelope) {
				continue
			}
			if match := roster.Match(); match != nil && (ev.Event == model.EventGameStartedDirect || ev.Event == model.EventGameInvite) {
				out.Print(&match.GameDetails)
				return match.GameDetails.RoomID, nil
			}
			out.Print(roster.Entries())
		}
	}
}

func newPlayUnreadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unready",
		Short: "Leave the ready roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.SetUnready(cmd.Context()); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("No longer available")
			return nil
		},
	}
}

func newPlayAvailableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List ready players",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := api.Available(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(entries)
			return nil
		},
	}
}

func newPlayChallengeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "challenge <user-id>",
		Short: "Start a game against a ready player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := api.Challenge(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(room)
			return nil
		},
	}
}
