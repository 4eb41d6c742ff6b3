package room

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/dependencies/random"
	"github.com/mcoot/tictactoe-live/internal/events"
	"github.com/mcoot/tictactoe-live/internal/keylock"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// CodeLength is the length of generated room codes
const CodeLength = 6

// Controller owns the room state machine
// Every mutation of a room runs under that room's lock
type Controller struct {
	storage   storage.Storage
	publisher events.Publisher
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger
	locks     *keylock.Map[model.RoomCode]
}

// NewController creates a new room controller
func NewController(
	storage storage.Storage,
	publisher events.Publisher,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:   storage,
		publisher: publisher,
		clock:     clock,
		random:    random,
		logger:    logger.With(slog.String("component", "room")),
		locks:     keylock.New[model.RoomCode](),
	}
}

// CreateRoom opens a pending room with the creator in the X seat
func (c *Controller) CreateRoom(ctx context.Context, creator model.User, isPublic bool) (*model.Room, error) {
	room, err := c.newRoom(ctx, isPublic)
	if err != nil {
		return nil, err
	}
	room.PlayerX = creator.Ref()
	room.TurnOwner = creator.ID

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("room created",
		slog.String("room_code", string(room.Code)),
		slog.String("user_id", string(creator.ID)),
		slog.Bool("public", isPublic),
	)
	return room, nil
}

// CreateMatchedRoom opens a private room that is already active with both seats filled
func (c *Controller) CreateMatchedRoom(ctx context.Context, x, o model.User) (*model.Room, error) {
	room, err := c.newRoom(ctx, false)
	if err != nil {
		return nil, err
	}
	room.PlayerX = x.Ref()
	room.PlayerO = o.Ref()
	room.TurnOwner = x.ID
	room.Status = model.RoomStatusActive

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("matched room created",
		slog.String("room_code", string(room.Code)),
		slog.String("player_x", string(x.ID)),
		slog.String("player_o", string(o.ID)),
	)
	return room, nil
}

func (c *Controller) newRoom(ctx context.Context, isPublic bool) (*model.Room, error) {
	var code model.RoomCode
	for {
		code = model.RoomCode(c.random.String(CodeLength, random.RoomCodeAlphabet))
		exists, err := c.storage.RoomExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
	}

	now := c.clock.Now()
	return &model.Room{
		ID:        uuid.NewString(),
		Code:      code,
		Board:     model.NewBoard(),
		Status:    model.RoomStatusPending,
		IsPublic:  isPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetRoom retrieves a room by code
func (c *Controller) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return c.storage.GetRoom(ctx, code)
}

// ListPublicRooms returns pending public rooms, newest first
func (c *Controller) ListPublicRooms(ctx context.Context) ([]*model.Room, error) {
	return c.storage.ListPublicPendingRooms(ctx)
}

// JoinRoom seats the user in the vacant seat
// A user who already holds a seat gets the current room back unchanged
func (c *Controller) JoinRoom(ctx context.Context, code model.RoomCode, user model.User) (*model.Room, error) {
	unlock := c.locks.Lock(code)
	defer unlock()

	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.MarkOf(user.ID) != model.MarkEmpty {
		return room, nil
	}
	if room.Status.IsTerminal() {
		return nil, model.ErrAlreadyFinished
	}
	if room.IsFull() {
		return nil, model.ErrRoomFull
	}

	if room.PlayerX.IsZero() {
		room.PlayerX = user.Ref()
	} else {
		room.PlayerO = user.Ref()
	}

	if room.IsFull() {
		room.Status = model.RoomStatusActive
		room.TurnOwner = room.PlayerX.ID
	}
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("room joined",
		slog.String("room_code", string(code)),
		slog.String("user_id", string(user.ID)),
		slog.String("status", string(room.Status)),
	)

	if room.Status == model.RoomStatusActive {
		c.publisher.PublishToTopic(model.RoomTopic(code), model.Event{
			Type:    model.EventGameUpdate,
			Payload: room.Clone(),
		})
		c.publisher.PublishToUser(room.PlayerX.ID, model.Event{
			Type: model.EventPlayerJoined,
			Payload: model.PlayerJoinedPayload{
				Room:                  room.Clone(),
				JoiningPlayerUsername: user.Username,
			},
		})
	}

	return room, nil
}

// SubmitMove places the caller's mark and advances the room
// Concurrent moves on one room are serialized so only the turn owner's first move lands
func (c *Controller) SubmitMove(ctx context.Context, code model.RoomCode, userID model.UserID, cell int) (*model.Room, error) {
	unlock := c.locks.Lock(code)
	defer unlock()

	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.Status != model.RoomStatusActive {
		return nil, model.ErrRoomNotActive
	}
	if room.TurnOwner != userID {
		return nil, model.ErrNotYourTurn
	}
	if cell < 0 || cell >= model.BoardCells || !room.Board.IsEmpty(cell) {
		return nil, model.ErrInvalidCell
	}

	mark := room.MarkOf(userID)
	room.Board[cell] = mark

	winner := room.Board.Winner()
	switch {
	case winner != model.MarkEmpty:
		room.Winner = room.Seat(winner)
		room.TurnOwner = ""
		if winner == model.MarkX {
			room.Status = model.RoomStatusXWins
		} else {
			room.Status = model.RoomStatusOWins
		}
	case room.Board.Full():
		room.TurnOwner = ""
		room.Status = model.RoomStatusDraw
	default:
		room.TurnOwner = room.Seat(mark.Other()).ID
	}
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	topic := model.RoomTopic(code)
	c.publisher.PublishToTopic(topic, model.Event{Type: model.EventGameUpdate, Payload: room.Clone()})

	if room.Status.IsTerminal() {
		c.finish(ctx, room, winner)
	}

	return room, nil
}

// finish records the result and announces the terminal transition once
func (c *Controller) finish(ctx context.Context, room *model.Room, winner model.Mark) {
	if !room.Winner.IsZero() {
		if err := c.storage.IncrementWins(ctx, room.Winner.ID); err != nil {
			c.logger.Error("failed to record win",
				slog.String("room_code", string(room.Code)),
				slog.String("user_id", string(room.Winner.ID)),
				slog.Any("error", err),
			)
		}
	}

	c.publisher.PublishToTopic(model.RoomTopic(room.Code), model.Event{
		Type: model.EventGameOver,
		Payload: model.GameOverPayload{
			Room:   room.Clone(),
			Winner: winner,
			Draw:   winner == model.MarkEmpty,
		},
	})

	c.logger.Info("room finished",
		slog.String("room_code", string(room.Code)),
		slog.String("status", string(room.Status)),
	)
}
