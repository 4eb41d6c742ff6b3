package response

import (
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// Message is a plain acknowledgement
type Message struct {
	Message string `json:"msg"`
}

// RegisterResponse acknowledges a new account
type RegisterResponse struct {
	Message string `json:"msg"`
	UserID  string `json:"user_id"`
}

// LoginResponse carries a freshly issued bearer token
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
}

// LoginResponseFromSession converts an auth session
func LoginResponseFromSession(s *auth.Session) LoginResponse {
	return LoginResponse{
		AccessToken: s.Token,
		UserID:      string(s.UserID),
		Username:    s.Username,
	}
}

// Me is the current user's profile
type Me struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

// MeFromModel converts a model.User
func MeFromModel(u *model.User) Me {
	return Me{ID: string(u.ID), Username: u.Username, Wins: u.Wins}
}

// ScoreEntry is one scoreboard row
type ScoreEntry struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

// ScoreboardFromModel converts scoreboard rows
func ScoreboardFromModel(entries []model.ScoreEntry) []ScoreEntry {
	out := make([]ScoreEntry, len(entries))
	for i, e := range entries {
		out[i] = ScoreEntry{Username: e.Username, Wins: e.Wins}
	}
	return out
}

// UsersFromModel converts search results
func UsersFromModel(refs []model.UserRef) []wire.UserSummary {
	out := make([]wire.UserSummary, len(refs))
	for i, r := range refs {
		out[i] = wire.UserSummary{ID: string(r.ID), Username: r.Username}
	}
	return out
}
