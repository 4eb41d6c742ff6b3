package model

// RosterEntry is a user currently declared available to play
type RosterEntry struct {
	UserID   UserID
	Username string
}

// ScoreEntry is one scoreboard line
type ScoreEntry struct {
	Username string
	Wins     int
}
