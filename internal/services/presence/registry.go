// Package presence tracks live connections and the ready-to-play roster.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/mcoot/tictactoe-live/internal/events"
	"github.com/mcoot/tictactoe-live/internal/model"
)

// Challenge notification messages
const (
	InviteMessage      = "You have been challenged to a game"
	DirectStartMessage = "Game started"
)

// Rooms is the slice of the room controller the registry needs
type Rooms interface {
	CreateMatchedRoom(ctx context.Context, x, o model.User) (*model.Room, error)
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
}

// Users resolves challenge targets
type Users interface {
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
}

// Registry is the single owner of who is connected, who is ready, and who is engaged
// All roster broadcasts are produced while holding its lock so recipients see them in mutation order
type Registry struct {
	rooms     Rooms
	users     Users
	publisher events.Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	conns   map[model.UserID]int
	names   map[model.UserID]string
	ready   []model.RosterEntry
	engaged map[model.UserID]model.RoomCode
}

// NewRegistry creates an empty registry
func NewRegistry(rooms Rooms, users Users, publisher events.Publisher, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:     rooms,
		users:     users,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "presence")),
		conns:     make(map[model.UserID]int),
		names:     make(map[model.UserID]string),
		engaged:   make(map[model.UserID]model.RoomCode),
	}
}

// Connect records a new live connection and reports whether it is the user's first
func (r *Registry) Connect(user model.UserRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[user.ID]++
	r.names[user.ID] = user.Username
	first := r.conns[user.ID] == 1
	if first {
		r.logger.Debug("user online", slog.String("user_id", string(user.ID)))
	}
	return first
}

// Disconnect drops a live connection and reports whether it was the user's last
// The last disconnect also takes the user off the roster
func (r *Registry) Disconnect(userID model.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.conns[userID]
	if !ok {
		return false
	}
	if n > 1 {
		r.conns[userID] = n - 1
		return false
	}

	delete(r.conns, userID)
	delete(r.names, userID)
	if r.removeReady(userID) {
		r.broadcastRoster()
	}
	r.logger.Debug("user offline", slog.String("user_id", string(userID)))
	return true
}

// IsOnline reports whether the user holds at least one live connection
func (r *Registry) IsOnline(userID model.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[userID] > 0
}

// SetReady puts the user on the roster; idempotent
// Declaring ready again also ends any previous engagement
func (r *Registry) SetReady(user model.UserRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[user.ID] == 0 {
		return model.ErrNotConnected
	}

	delete(r.engaged, user.ID)
	if r.isReady(user.ID) {
		return nil
	}
	r.ready = append(r.ready, model.RosterEntry{UserID: user.ID, Username: user.Username})
	r.broadcastRoster()
	return nil
}

// SetUnready takes the user off the roster; idempotent
func (r *Registry) SetUnready(userID model.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removeReady(userID) {
		r.broadcastRoster()
	}
}

// Available returns the roster in ready order without the viewer
func (r *Registry) Available(viewer model.UserID) []model.RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterFor(viewer)
}

// Challenge pairs the initiator with a ready target in a fresh active room
func (r *Registry) Challenge(ctx context.Context, initiator model.User, targetID model.UserID) (*model.Room, error) {
	if initiator.ID == targetID {
		return nil, model.ErrCannotChallengeSelf
	}

	target, err := r.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	busy, err := r.isEngaged(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, model.ErrTargetBusy
	}
	if !r.isReady(targetID) {
		return nil, model.ErrTargetNotReady
	}

	room, err := r.rooms.CreateMatchedRoom(ctx, initiator, *target)
	if err != nil {
		return nil, err
	}

	r.removeReady(initiator.ID)
	r.removeReady(targetID)
	r.engaged[initiator.ID] = room.Code
	r.engaged[targetID] = room.Code
	r.broadcastRoster()

	r.publisher.PublishToUser(targetID, model.Event{
		Type:    model.EventGameInvite,
		Payload: model.DirectStartPayload{Message: InviteMessage, Room: room.Clone(), Viewer: targetID},
	})
	r.publisher.PublishToUser(initiator.ID, model.Event{
		Type:    model.EventGameStartedDirect,
		Payload: model.DirectStartPayload{Message: DirectStartMessage, Room: room.Clone(), Viewer: initiator.ID},
	})

	r.logger.Info("challenge accepted",
		slog.String("room_code", string(room.Code)),
		slog.String("initiator", string(initiator.ID)),
		slog.String("target", string(targetID)),
	)
	return room, nil
}

// isEngaged reports whether the user is still playing a room created by a challenge
// Engagements whose room has ended are cleared lazily
func (r *Registry) isEngaged(ctx context.Context, userID model.UserID) (bool, error) {
	code, ok := r.engaged[userID]
	if !ok {
		return false, nil
	}

	room, err := r.rooms.GetRoom(ctx, code)
	if err != nil && !errors.Is(err, model.ErrRoomNotFound) {
		return false, err
	}
	if room == nil || room.Status.IsTerminal() {
		delete(r.engaged, userID)
		return false, nil
	}
	return true, nil
}

func (r *Registry) isReady(userID model.UserID) bool {
	return slices.ContainsFunc(r.ready, func(e model.RosterEntry) bool { return e.UserID == userID })
}

func (r *Registry) removeReady(userID model.UserID) bool {
	before := len(r.ready)
	r.ready = slices.DeleteFunc(r.ready, func(e model.RosterEntry) bool { return e.UserID == userID })
	return len(r.ready) != before
}

func (r *Registry) rosterFor(viewer model.UserID) []model.RosterEntry {
	out := make([]model.RosterEntry, 0, len(r.ready))
	for _, e := range r.ready {
		if e.UserID != viewer {
			out = append(out, e)
		}
	}
	return out
}

// broadcastRoster sends every online user the full roster minus themselves
// Callers must hold r.mu
func (r *Registry) broadcastRoster() {
	for userID := range r.conns {
		r.publisher.PublishToUser(userID, model.Event{
			Type:    model.EventAvailablePlayers,
			Payload: model.RosterPayload{Entries: r.rosterFor(userID)},
		})
	}
}
