package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/client"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case *response.LoginResponse:
		fmt.Printf("Logged in as %s (%s)\n", v.Username, v.UserID)
	case *response.Me:
		fmt.Printf("User: %s (%s)\n", v.Username, v.ID)
		fmt.Printf("Wins: %d\n", v.Wins)
	case []response.ScoreEntry:
		o.printScoreboard(v)
	case *wire.Room:
		o.printRoom(*v)
	case []wire.Room:
		o.printRooms(v)
	case []wire.RosterEntry:
		o.printRoster(v)
	case []wire.Friend:
		o.printFriends(v)
	case []wire.FriendRequest:
		o.printRequests(v)
	case []wire.UserSummary:
		o.printUsers(v)
	case client.RoomView:
		o.printView(v)
	case client.FeedView:
		o.printFeed(v)
	case healthResult:
		fmt.Printf("Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func (o *Output) printScoreboard(entries []response.ScoreEntry) {
	if len(entries) == 0 {
		fmt.Println("No wins recorded yet")
		return
	}
	for i, e := range entries {
		fmt.Printf("%2d. %-20s %d\n", i+1, e.Username, e.Wins)
	}
}

func (o *Output) printRoom(r wire.Room) {
	fmt.Printf("Room: %s\n", r.RoomID)
	fmt.Printf("Status: %s\n", r.Status)
	fmt.Printf("X: %s\n", r.PlayerXUsername)
	fmt.Printf("O: %s\n", deref(r.PlayerOUsername))
	if r.CurrentPlayerSymbol != nil {
		fmt.Printf("You play: %s\n", *r.CurrentPlayerSymbol)
	}
	if r.CurrentTurnUsername != nil {
		fmt.Printf("Turn: %s\n", *r.CurrentTurnUsername)
	}
	if r.WinnerUsername != nil {
		fmt.Printf("Winner: %s\n", *r.WinnerUsername)
	}
	fmt.Println()
	o.printBoard(r.ToModel().Board, -1)
}

func (o *Output) printRooms(rooms []wire.Room) {
	if len(rooms) == 0 {
		fmt.Println("No open rooms")
		return
	}
	for _, r := range rooms {
		fmt.Printf("  %s  hosted by %s\n", r.RoomID, r.PlayerXUsername)
	}
}

func (o *Output) printRoster(entries []wire.RosterEntry) {
	if len(entries) == 0 {
		fmt.Println("Nobody is ready")
		return
	}
	fmt.Printf("Ready players (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  - %s (%s)\n", e.Username, e.ID)
	}
}

func (o *Output) printFriends(friends []wire.Friend) {
	if len(friends) == 0 {
		fmt.Println("No friends yet")
		return
	}
	for _, f := range friends {
		status := "offline"
		if f.Online {
			status = "online"
		}
		fmt.Printf("  - %s (%s) %s\n", f.Username, f.ID, status)
	}
}

func (o *Output) printRequests(requests []wire.FriendRequest) {
	if len(requests) == 0 {
		fmt.Println("No pending requests")
		return
	}
	for _, r := range requests {
		fmt.Printf("  %s from %s (%s)\n", r.RequestID, r.RequesterUsername, r.RequesterID)
	}
}

func (o *Output) printFeed(v client.FeedView) {
	o.printLink(v.Disconnected, v.ReconnectAttempts)
	fmt.Printf("[%d] Friends\n", v.Seq)
	o.printFriends(v.Friends)
	fmt.Println("Requests")
	o.printRequests(v.Requests)
	for _, r := range v.Responses {
		fmt.Printf("  %s %s your request\n", r.AddresseeUsername, r.Status)
	}
}

func (o *Output) printUsers(users []wire.UserSummary) {
	if len(users) == 0 {
		fmt.Println("No matches")
		return
	}
	for _, u := range users {
		fmt.Printf("  - %s (%s)\n", u.Username, u.ID)
	}
}

// printLink shows the channel indicator while a session is down
func (o *Output) printLink(disconnected bool, attempts int) {
	switch {
	case !disconnected:
	case attempts > 0:
		o.PrintMessage(fmt.Sprintf("!! Disconnected, reconnect attempt %d failed, retrying", attempts))
	default:
		o.PrintMessage("!! Disconnected, reconnecting")
	}
}

func (o *Output) printView(v client.RoomView) {
	o.printLink(v.Disconnected, v.ReconnectAttempts)
	if v.Rejected != "" {
		fmt.Printf("Rejected: %s\n", v.Rejected)
	}
	if v.Room == nil {
		fmt.Println("Waiting for room state")
		return
	}
	line := fmt.Sprintf("[%d] %s", v.Seq, v.Room.Status)
	if turn := v.Room.TurnOwnerRef(); turn.Username != "" {
		line += ", " + turn.Username + " to move"
	}
	if v.Stale {
		line += " (resyncing)"
	}
	fmt.Println(line)
	o.printBoard(v.Board, v.Pending)

	if v.Result != nil {
		if v.Result.Draw {
			fmt.Println("Result: draw")
		} else {
			fmt.Printf("Result: %s wins\n", v.Result.Winner)
		}
	}
}

// printBoard renders the grid with cell indexes in empty cells; pending marks are lowercase
func (o *Output) printBoard(b model.Board, pending int) {
	for row := range 3 {
		cells := make([]string, 3)
		for col := range 3 {
			i := row*3 + col
			switch {
			case b.IsEmpty(i):
				cells[col] = fmt.Sprintf("%d", i)
			case i == pending:
				cells[col] = strings.ToLower(string(b[i]))
			default:
				cells[col] = string(b[i])
			}
		}
		fmt.Printf(" %s \n", strings.Join(cells, " | "))
		if row < 2 {
			fmt.Println("---+---+---")
		}
	}
}
