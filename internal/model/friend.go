package model

import "time"

// FriendRequestID identifies a friend edge
type FriendRequestID string

// FriendStatus is the lifecycle state of a friend edge
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
	FriendStatusDeclined FriendStatus = "declined"
)

// FriendEdge is a relationship between a requester and an addressee
type FriendEdge struct {
	ID          FriendRequestID
	RequesterID UserID
	AddresseeID UserID
	Status      FriendStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Involves reports whether the user is either end of the edge
func (e *FriendEdge) Involves(id UserID) bool {
	return e.RequesterID == id || e.AddresseeID == id
}

// Peer returns the other end of the edge
func (e *FriendEdge) Peer(id UserID) UserID {
	if e.RequesterID == id {
		return e.AddresseeID
	}
	return e.RequesterID
}

// Friend is an accepted edge projected for one side, with live presence
type Friend struct {
	ID       UserID
	Username string
	Online   bool
}

// FriendRequest is a pending edge as seen by its addressee
type FriendRequest struct {
	ID                FriendRequestID
	RequesterID       UserID
	RequesterUsername string
}
