package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-live/internal/client"
)

var (
	cfg *Config
	api *client.API
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "tttctl",
		Short: "CLI tool for the tic-tac-toe server",
		Long: `tttctl drives the tic-tac-toe server from a terminal.

It covers accounts, rooms, the ready roster, friends, and the live push
channel: "watch" follows a room until it finishes and "events" prints every
frame the channel delivers.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			api = client.NewAPI(cfg.ServerURL, cfg.Token)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: TTT_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Bearer token (env: TTT_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: TTT_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newScoreboardCmd())
	rootCmd.AddCommand(newRoomCmd())
	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newFriendsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		// A rejected token never recovers; make the next command start from login
		if errors.Is(err, client.ErrAuthRejected) || errors.Is(err, client.ErrSessionTerminated) {
			_ = cfg.ClearToken()
		}
		os.Exit(1)
	}
}
