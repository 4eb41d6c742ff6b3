package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
// Values are copied on the way in and out so callers never share state
type Storage struct {
	mu sync.RWMutex

	users         map[model.UserID]model.User
	accounts      map[string]model.Account // keyed by lower-cased username
	rooms         map[model.RoomCode]model.Room
	friendEdges   map[model.FriendRequestID]model.FriendEdge
	friendsByUser map[model.UserID]map[model.FriendRequestID]struct{}
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:         make(map[model.UserID]model.User),
		accounts:      make(map[string]model.Account),
		rooms:         make(map[model.RoomCode]model.Room),
		friendEdges:   make(map[model.FriendRequestID]model.FriendEdge),
		friendsByUser: make(map[model.UserID]map[model.FriendRequestID]struct{}),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) IncrementWins(ctx context.Context, id model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	user.Wins++
	s.users[id] = user
	return nil
}

func (s *Storage) TopUsersByWins(ctx context.Context, limit int) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Wins != users[j].Wins {
			return users[i].Wins > users[j].Wins
		}
		return users[i].Username < users[j].Username
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Storage) SearchUsers(ctx context.Context, query string, exclude model.UserID, limit int) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var users []*model.User
	for _, u := range s.users {
		if u.ID == exclude || !strings.Contains(strings.ToLower(u.Username), q) {
			continue
		}
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(account.Username)] = *account
	return nil
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[strings.ToLower(username)]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &account, nil
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = *room
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return &room, nil
}

func (s *Storage) RoomExists(ctx context.Context, code model.RoomCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[code]
	return ok, nil
}

func (s *Storage) ListPublicPendingRooms(ctx context.Context) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rooms []*model.Room
	for _, r := range s.rooms {
		if r.IsPublic && r.Status == model.RoomStatusPending {
			r := r
			rooms = append(rooms, &r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	return rooms, nil
}

// Friend edge operations

func (s *Storage) SaveFriendEdge(ctx context.Context, edge *model.FriendEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendEdges[edge.ID] = *edge
	for _, id := range []model.UserID{edge.RequesterID, edge.AddresseeID} {
		if s.friendsByUser[id] == nil {
			s.friendsByUser[id] = make(map[model.FriendRequestID]struct{})
		}
		s.friendsByUser[id][edge.ID] = struct{}{}
	}
	return nil
}

func (s *Storage) GetFriendEdge(ctx context.Context, id model.FriendRequestID) (*model.FriendEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.friendEdges[id]
	if !ok {
		return nil, model.ErrRequestNotFound
	}
	return &edge, nil
}

func (s *Storage) FindFriendEdge(ctx context.Context, a, b model.UserID) (*model.FriendEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.friendsByUser[a] {
		edge := s.friendEdges[id]
		if edge.Peer(a) == b {
			return &edge, nil
		}
	}
	return nil, model.ErrRequestNotFound
}

func (s *Storage) DeleteFriendEdge(ctx context.Context, id model.FriendRequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge, ok := s.friendEdges[id]
	if !ok {
		return nil
	}
	delete(s.friendEdges, id)
	delete(s.friendsByUser[edge.RequesterID], id)
	delete(s.friendsByUser[edge.AddresseeID], id)
	return nil
}

func (s *Storage) ListFriendEdges(ctx context.Context, userID model.UserID) ([]*model.FriendEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := make([]*model.FriendEdge, 0, len(s.friendsByUser[userID]))
	for id := range s.friendsByUser[userID] {
		edge := s.friendEdges[id]
		edges = append(edges, &edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].CreatedAt.Before(edges[j].CreatedAt) })
	return edges, nil
}
