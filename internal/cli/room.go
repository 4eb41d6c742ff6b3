package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Room commands",
	}

	cmd.AddCommand(newRoomCreateCmd())
	cmd.AddCommand(newRoomPublicCmd())
	cmd.AddCommand(newRoomJoinCmd())
	cmd.AddCommand(newRoomGetCmd())
	cmd.AddCommand(newRoomMoveCmd())

	return cmd
}

func newRoomCreateCmd() *cobra.Command {
	var public bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room and take the X seat",
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := api.CreateRoom(cmd.Context(), public)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(room)
			return nil
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "List the room for anyone to join")

	return cmd
}

func newRoomPublicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "public",
		Short: "List public rooms waiting for a second player",
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := api.PublicRooms(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(rooms)
			return nil
		},
	}
}

func newRoomJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Take the O seat in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := api.JoinRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(room)
			return nil
		},
	}
}

func newRoomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Show a room snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := api.GetRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(room)
			return nil
		},
	}
}

func newRoomMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <code> <index>",
		Short: "Mark a cell (0-8, row-major)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}

			room, err := api.Move(cmd.Context(), args[0], index)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(room)
			return nil
		},
	}
}
