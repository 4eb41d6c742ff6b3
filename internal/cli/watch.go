package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-live/internal/client"
)

func newWatchCmd() *cobra.Command {
	var move int

	cmd := &cobra.Command{
		Use:   "watch <code>",
		Short: "Follow a room live until it finishes",
		Long: `Join the room over the push channel and print the board every time it
changes. The view survives dropped connections: after a reconnect the room is
refetched and the stream resumes without losing or repeating moves. While the
channel is down every failed reconnect is reported.

With --move the cell is submitted once the room is joined; a refused move is
printed and ends the command with an error.

Press Ctrl+C to stop watching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible(cmd.Context())
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			var opening *int
			if cmd.Flags().Changed("move") {
				opening = &move
			}
			return watchRoom(ctx, session, args[0], opening)
		},
	}

	cmd.Flags().IntVar(&move, "move", -1, "Submit this cell over the channel before watching")

	return cmd
}

// watchRoom follows the room to the end, submitting move first when set
func watchRoom(ctx context.Context, session *client.Session, code string, move *int) error {
	out := NewOutput(cfg.Output)
	view, err := client.WatchRoom(ctx, api, session, code, client.WatchOptions{
		Move:     move,
		OnChange: func(v client.RoomView) { out.Print(v) },
	})
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, client.ErrMoveRejected):
		return err
	case errors.Is(err, client.ErrSessionTerminated):
		return fmt.Errorf("session ended by the server, log in again: %w", err)
	case err != nil:
		return err
	}

	if cfg.Output != "json" && view.Result != nil {
		fmt.Println("Game over")
	}
	return nil
}
