package model

import "time"

// UserID uniquely identifies a user across the system
type UserID string

// User is the public profile of an account
type User struct {
	ID        UserID
	Username  string
	Wins      int
	CreatedAt time.Time
}

// Account holds login credentials for a user
// Stored separately so password hashes never travel with the profile
type Account struct {
	UserID       UserID
	Username     string // as registered; lookups are case-insensitive
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef is the minimal identity embedded in rooms and push payloads
type UserRef struct {
	ID       UserID
	Username string
}

// Ref returns the user's reference form
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}

// IsZero reports whether the reference is empty
func (r UserRef) IsZero() bool {
	return r.ID == ""
}
