package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/tictactoe-live/internal/client"
)

func newEventsCmd() *cobra.Command {
	var (
		jsonOutput bool
		rooms      []string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream raw push channel events",
		Long: `Connect the push channel and print every frame it delivers.

Events include:
  - connected: Channel authenticated
  - friend_list_update / friend_status_update: Friend presence
  - friend_request_received / friend_request_responded: Friend requests
  - available_players_update: Ready roster changed
  - game_invite / game_started_direct: A challenge started a room
  - game_joined_successfully / game_update / game_over: Rooms passed with --room
  - session_disconnected / session_reconnected: Transport drops and recoveries
  - session_reconnect_failing: Repeats while reconnect attempts keep failing

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptible(cmd.Context())
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			sub := session.Subscribe()
			defer sub.Close()
			for _, code := range rooms {
				roomSub, err := session.JoinRoom(code)
				if err != nil {
					return err
				}
				// Room frames reach the catch-all subscription too
				defer roomSub.Close()
			}

			if !jsonOutput {
				fmt.Println("Connected")
			}
			for {
				select {
				case <-ctx.Done():
					if !jsonOutput {
						fmt.Println("\nDisconnected")
					}
					return nil
				case ev, ok := <-sub.Events():
					if !ok {
						return client.ErrNotConnected
					}
					printEvent(ev, jsonOutput)
					if ev.Event == client.EventTerminated {
						return ev.Err
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().StringSliceVar(&rooms, "room", nil, "Also join these room codes")

	return cmd
}

// eventLine is one JSON line of --json output
type eventLine struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func printEvent(ev client.Event, jsonOutput bool) {
	now := time.Now()

	if ev.Event == client.EventReconnectFailing {
		data, _ := json.Marshal(map[string]any{"attempt": ev.Attempt, "error": fmt.Sprint(ev.Err)})
		ev.Data = data
	}

	if jsonOutput {
		jsonData, _ := json.Marshal(eventLine{Time: now, Event: string(ev.Event), Data: ev.Data})
		fmt.Println(string(jsonData))
		return
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	// Truncate data if it's too long for display
	displayData := string(ev.Data)
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	displayData = strings.ReplaceAll(displayData, "\n", " ")
	fmt.Printf("[%s] %s: %s\n", timestamp, ev.Event, displayData)
}
