package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-live/internal/client"
	"github.com/mcoot/tictactoe-live/internal/model"
)

func newFriendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "Friend commands",
	}

	cmd.AddCommand(newFriendsListCmd())
	cmd.AddCommand(newFriendsRequestsCmd())
	cmd.AddCommand(newFriendsAddCmd())
	cmd.AddCommand(newFriendsRespondCmd())
	cmd.AddCommand(newFriendsSearchCmd())
	cmd.AddCommand(newFriendsWatchCmd())

	return cmd
}

func newFriendsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List friends with online status",
		RunE: func(cmd *cobra.Command, args []string) error {
			friends, err := api.Friends(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(friends)
			return nil
		},
	}
}

func newFriendsRequestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "List pending requests addressed to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := api.FriendRequests(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(requests)
			return nil
		},
	}
}

func newFriendsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <user-id>",
		Short: "Send a friend request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.SendFriendRequest(cmd.Context(), args[0]); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Friend request sent")
			return nil
		},
	}
}

func newFriendsRespondCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "respond <request-id> accepted|declined",
		Short:     "Answer a friend request",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(model.FriendStatusAccepted), string(model.FriendStatusDeclined)},
		RunE: func(cmd *cobra.Command, args []string) error {
			status := model.FriendStatus(args[1])
			if err := api.RespondFriendRequest(cmd.Context(), args[0], status); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Friend request %s", status))
			return nil
		},
	}
}

func newFriendsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find users by username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := api.SearchUsers(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(users)
			return nil
		},
	}
}

func newFriendsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow friends, presence and requests live",
		Long: `Open the push channel and print your friends, their online status and
pending requests every time they change. After a reconnect both lists are
fetched again.

Press Ctrl+C to stop watching.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible(cmd.Context())
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			out := NewOutput(cfg.Output)
			err = client.WatchFeed(ctx, api, session, func(v client.FeedView) {
				out.Print(v)
			})
			switch {
			case errors.Is(err, context.Canceled):
				return nil
			case errors.Is(err, client.ErrSessionTerminated):
				return fmt.Errorf("session ended by the server, log in again: %w", err)
			}
			return err
		},
	}
}
