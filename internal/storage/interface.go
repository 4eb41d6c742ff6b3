package storage

import (
	"context"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	IncrementWins(ctx context.Context, id model.UserID) error
	TopUsersByWins(ctx context.Context, limit int) ([]*model.User, error)
	// SearchUsers matches usernames case-insensitively by substring
	SearchUsers(ctx context.Context, query string, exclude model.UserID, limit int) ([]*model.User, error)

	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)

	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	RoomExists(ctx context.Context, code model.RoomCode) (bool, error)
	ListPublicPendingRooms(ctx context.Context) ([]*model.Room, error)

	// Friend edge operations
	SaveFriendEdge(ctx context.Context, edge *model.FriendEdge) error
	GetFriendEdge(ctx context.Context, id model.FriendRequestID) (*model.FriendEdge, error)
	// FindFriendEdge returns the edge between two users in either direction
	FindFriendEdge(ctx context.Context, a, b model.UserID) (*model.FriendEdge, error)
	DeleteFriendEdge(ctx context.Context, id model.FriendRequestID) error
	ListFriendEdges(ctx context.Context, userID model.UserID) ([]*model.FriendEdge, error)
}
