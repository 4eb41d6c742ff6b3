package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-live/internal/model"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) saveUser(id, name string, wins int) {
	s.Require().NoError(s.storage.SaveUser(s.ctx, &model.User{ID: model.UserID(id), Username: name, Wins: wins}))
}

// User tests

func (s *StorageSuite) TestSaveAndGetUser() {
	s.saveUser("u1", "alice", 0)

	user, err := s.storage.GetUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("alice", user.Username)
}

func (s *StorageSuite) TestGetUserNotFound() {
	_, err := s.storage.GetUser(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestReturnedUserIsACopy() {
	s.saveUser("u1", "alice", 0)

	user, _ := s.storage.GetUser(s.ctx, "u1")
	user.Wins = 99

	again, _ := s.storage.GetUser(s.ctx, "u1")
	s.Equal(0, again.Wins)
}

func (s *StorageSuite) TestIncrementWins() {
	s.saveUser("u1", "alice", 0)

	s.Require().NoError(s.storage.IncrementWins(s.ctx, "u1"))
	s.Require().NoError(s.storage.IncrementWins(s.ctx, "u1"))

	user, _ := s.storage.GetUser(s.ctx, "u1")
	s.Equal(2, user.Wins)
	s.ErrorIs(s.storage.IncrementWins(s.ctx, "ghost"), model.ErrUserNotFound)
}

func (s *StorageSuite) TestTopUsersByWins() {
	s.saveUser("u1", "alice", 3)
	s.saveUser("u2", "bob", 5)
	s.saveUser("u3", "carol", 3)
	s.saveUser("u4", "dave", 0)

	users, err := s.storage.TopUsersByWins(s.ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(users, 3)
	s.Equal("bob", users[0].Username)
	s.Equal("alice", users[1].Username)
	s.Equal("carol", users[2].Username)
}

func (s *StorageSuite) TestSearchUsers() {
	s.saveUser("u1", "Alice", 0)
	s.saveUser("u2", "malice", 0)
	s.saveUser("u3", "bob", 0)

	users, err := s.storage.SearchUsers(s.ctx, "ALI", "u1", 10)
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Equal("malice", users[0].Username)
}

// Account tests

func (s *StorageSuite) TestAccountLookupIsCaseInsensitive() {
	err := s.storage.SaveAccount(s.ctx, &model.Account{UserID: "u1", Username: "Alice", PasswordHash: "h"})
	s.Require().NoError(err)

	account, err := s.storage.GetAccountByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), account.UserID)

	_, err = s.storage.GetAccountByUsername(s.ctx, "bob")
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Room tests

func (s *StorageSuite) TestSaveAndGetRoom() {
	room := &model.Room{Code: "ABC123", Board: model.NewBoard(), Status: model.RoomStatusPending}
	s.Require().NoError(s.storage.SaveRoom(s.ctx, room))

	got, err := s.storage.GetRoom(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.RoomStatusPending, got.Status)

	exists, _ := s.storage.RoomExists(s.ctx, "ABC123")
	s.True(exists)
	exists, _ = s.storage.RoomExists(s.ctx, "ZZZ999")
	s.False(exists)
}

func (s *StorageSuite) TestGetRoomNotFound() {
	_, err := s.storage.GetRoom(s.ctx, "NOPE00")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestListPublicPendingRooms() {
	now := time.Now()
	rooms := []*model.Room{
		{Code: "OLD001", IsPublic: true, Status: model.RoomStatusPending, CreatedAt: now.Add(-time.Minute)},
		{Code: "NEW001", IsPublic: true, Status: model.RoomStatusPending, CreatedAt: now},
		{Code: "PRIV01", IsPublic: false, Status: model.RoomStatusPending, CreatedAt: now},
		{Code: "ACT001", IsPublic: true, Status: model.RoomStatusActive, CreatedAt: now},
	}
	for _, r := range rooms {
		s.Require().NoError(s.storage.SaveRoom(s.ctx, r))
	}

	listed, err := s.storage.ListPublicPendingRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(model.RoomCode("NEW001"), listed[0].Code)
	s.Equal(model.RoomCode("OLD001"), listed[1].Code)
}

// Friend edge tests

func (s *StorageSuite) TestFriendEdgeLifecycle() {
	edge := &model.FriendEdge{ID: "f1", RequesterID: "a", AddresseeID: "b", Status: model.FriendStatusPending}
	s.Require().NoError(s.storage.SaveFriendEdge(s.ctx, edge))

	found, err := s.storage.FindFriendEdge(s.ctx, "b", "a")
	s.Require().NoError(err)
	s.Equal(model.FriendRequestID("f1"), found.ID)

	edges, _ := s.storage.ListFriendEdges(s.ctx, "a")
	s.Len(edges, 1)

	s.Require().NoError(s.storage.DeleteFriendEdge(s.ctx, "f1"))
	_, err = s.storage.FindFriendEdge(s.ctx, "a", "b")
	s.ErrorIs(err, model.ErrRequestNotFound)
	_, err = s.storage.GetFriendEdge(s.ctx, "f1")
	s.ErrorIs(err, model.ErrRequestNotFound)
	edges, _ = s.storage.ListFriendEdges(s.ctx, "b")
	s.Empty(edges)
}
