package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Room errors
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrAlreadyFinished = errors.New("room has already finished")
	ErrNotYourTurn     = errors.New("not this user's turn")
	ErrInvalidCell     = errors.New("invalid or occupied cell")
	ErrRoomNotActive   = errors.New("room is not active")

	// Roster errors
	ErrTargetNotReady      = errors.New("target is not ready to play")
	ErrTargetBusy          = errors.New("target is already engaged in a challenge")
	ErrCannotChallengeSelf = errors.New("cannot challenge yourself")
	ErrNotConnected        = errors.New("user has no live connection")

	// Friend errors
	ErrAlreadyFriends        = errors.New("users are already friends")
	ErrRequestAlreadyPending = errors.New("a friend request is already pending")
	ErrCannotFriendSelf      = errors.New("cannot send a friend request to yourself")
	ErrRequestNotFound       = errors.New("friend request not found")
	ErrNotAddressee          = errors.New("user is not the addressee of this request")
	ErrRequestNotPending     = errors.New("friend request is no longer pending")
	ErrInvalidResponse       = errors.New("response must be accepted or declined")
)
