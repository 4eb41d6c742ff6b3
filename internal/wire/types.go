// Package wire defines the JSON shapes shared by the HTTP API, the push channel and the client.
package wire

import (
	"time"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// Room is a room snapshot as seen by one viewer
type Room struct {
	ID                  string    `json:"id"`
	RoomID              string    `json:"room_id"`
	PlayerXID           string    `json:"player_x_id"`
	PlayerXUsername     string    `json:"player_x_username"`
	PlayerOID           *string   `json:"player_o_id"`
	PlayerOUsername     *string   `json:"player_o_username"`
	Board               []string  `json:"board"`
	CurrentTurnPlayerID *string   `json:"current_turn_player_id"`
	CurrentTurnUsername *string   `json:"current_turn_username"`
	CurrentPlayerSymbol *string   `json:"current_player_symbol"`
	Status              string    `json:"status"`
	IsPublic            bool      `json:"is_public"`
	WinnerID            *string   `json:"winner_id"`
	WinnerUsername      *string   `json:"winner_username"`
	CreatedAt           time.Time `json:"created_at"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RoomFromModel builds the snapshot for a viewer
// CurrentPlayerSymbol is the viewer's own mark, or nil when they hold no seat
func RoomFromModel(r *model.Room, viewer model.UserID) Room {
	board := make([]string, model.BoardCells)
	for i, m := range r.Board {
		if m == "" {
			m = model.MarkEmpty
		}
		board[i] = string(m)
	}

	turn := r.TurnOwnerRef()
	var symbol *string
	if m := r.MarkOf(viewer); m != model.MarkEmpty {
		symbol = optional(string(m))
	}

	return Room{
		ID:                  r.ID,
		RoomID:              string(r.Code),
		PlayerXID:           string(r.PlayerX.ID),
		PlayerXUsername:     r.PlayerX.Username,
		PlayerOID:           optional(string(r.PlayerO.ID)),
		PlayerOUsername:     optional(r.PlayerO.Username),
		Board:               board,
		CurrentTurnPlayerID: optional(string(turn.ID)),
		CurrentTurnUsername: optional(turn.Username),
		CurrentPlayerSymbol: symbol,
		Status:              string(r.Status),
		IsPublic:            r.IsPublic,
		WinnerID:            optional(string(r.Winner.ID)),
		WinnerUsername:      optional(r.Winner.Username),
		CreatedAt:           r.CreatedAt,
	}
}

// RoomsFromModel builds snapshots for a list
func RoomsFromModel(rooms []*model.Room, viewer model.UserID) []Room {
	out := make([]Room, len(rooms))
	for i, r := range rooms {
		out[i] = RoomFromModel(r, viewer)
	}
	return out
}

// ToModel converts a snapshot back into a room for client-side bookkeeping
func (r Room) ToModel() *model.Room {
	room := &model.Room{
		ID:        r.ID,
		Code:      model.RoomCode(r.RoomID),
		PlayerX:   model.UserRef{ID: model.UserID(r.PlayerXID), Username: r.PlayerXUsername},
		PlayerO:   model.UserRef{ID: model.UserID(deref(r.PlayerOID)), Username: deref(r.PlayerOUsername)},
		Board:     model.NewBoard(),
		TurnOwner: model.UserID(deref(r.CurrentTurnPlayerID)),
		Status:    model.RoomStatus(r.Status),
		IsPublic:  r.IsPublic,
		Winner:    model.UserRef{ID: model.UserID(deref(r.WinnerID)), Username: deref(r.WinnerUsername)},
		CreatedAt: r.CreatedAt,
	}
	for i := 0; i < len(r.Board) && i < model.BoardCells; i++ {
		switch m := model.Mark(r.Board[i]); m {
		case model.MarkX, model.MarkO:
			room.Board[i] = m
		}
	}
	return room
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RoomEnvelope wraps a snapshot with a human-readable message
type RoomEnvelope struct {
	Message     string `json:"msg"`
	GameDetails Room   `json:"game_details"`
}

// GameOver is the terminal event payload; exactly one of Winner and Draw is set
type GameOver struct {
	Game   Room   `json:"game"`
	Winner string `json:"winner,omitempty"`
	Draw   bool   `json:"draw,omitempty"`
}

// PlayerJoined tells the first mover who took the second seat
type PlayerJoined struct {
	Game                  Room   `json:"game"`
	JoiningPlayerUsername string `json:"joining_player_username"`
}

// RosterEntry is one ready player
type RosterEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RosterFromModel converts roster entries
func RosterFromModel(entries []model.RosterEntry) []RosterEntry {
	out := make([]RosterEntry, len(entries))
	for i, e := range entries {
		out[i] = RosterEntry{ID: string(e.UserID), Username: e.Username}
	}
	return out
}

// Friend is an accepted friend with live presence
type Friend struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// FriendsFromModel converts a friend list
func FriendsFromModel(friends []model.Friend) []Friend {
	out := make([]Friend, len(friends))
	for i, f := range friends {
		out[i] = Friend{ID: string(f.ID), Username: f.Username, Online: f.Online}
	}
	return out
}

// FriendRequest is a pending request addressed to the viewer
type FriendRequest struct {
	RequestID         string `json:"request_id"`
	RequesterID       string `json:"requester_id"`
	RequesterUsername string `json:"requester_username"`
}

// FriendRequestsFromModel converts pending requests
func FriendRequestsFromModel(requests []model.FriendRequest) []FriendRequest {
	out := make([]FriendRequest, len(requests))
	for i, r := range requests {
		out[i] = FriendRequest{
			RequestID:         string(r.ID),
			RequesterID:       string(r.RequesterID),
			RequesterUsername: r.RequesterUsername,
		}
	}
	return out
}

// FriendStatus reports a friend going online or offline
type FriendStatus struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// FriendRequestResponded tells the requester how their request was answered
type FriendRequestResponded struct {
	RequestID         string `json:"request_id"`
	AddresseeID       string `json:"addressee_id"`
	AddresseeUsername string `json:"addressee_username"`
	Status            string `json:"status"`
}

// UserSummary is a user in search results
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Connected acknowledges an authenticated channel
type Connected struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Error answers a rejected channel command or a failed handshake
type Error struct {
	Message string `json:"message"`
}

// RoomCommand names a room for join_game_room and leave_game_room
type RoomCommand struct {
	RoomID string `json:"room_id"`
}

// MoveCommand is the make_move payload
type MoveCommand struct {
	RoomID string `json:"room_id"`
	Index  int    `json:"index"`
}
