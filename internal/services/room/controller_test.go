package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-live/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage/memory"
	"github.com/mcoot/tictactoe-live/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	publisher  *mocks.Publisher
	controller *Controller
	ctx        context.Context

	alice model.User
	bob   model.User
	carol model.User
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.publisher = mocks.NewPublisher()
	s.controller = NewController(s.storage, s.publisher, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()

	s.alice = s.createUser("alice-id", "alice")
	s.bob = s.createUser("bob-id", "bob")
	s.carol = s.createUser("carol-id", "carol")
}

func (s *ControllerSuite) createUser(id, name string) model.User {
	user := model.User{ID: model.UserID(id), Username: name, CreatedAt: s.clock.Now()}
	s.Require().NoError(s.storage.SaveUser(s.ctx, &user))
	return user
}

// activeRoom returns an active room with alice as X and bob as O
func (s *ControllerSuite) activeRoom() *model.Room {
	s.random.QueueString("ROOM22")
	room, err := s.controller.CreateRoom(s.ctx, s.alice, true)
	s.Require().NoError(err)
	room, err = s.controller.JoinRoom(s.ctx, room.Code, s.bob)
	s.Require().NoError(err)
	s.publisher.Reset()
	return room
}

func (s *ControllerSuite) play(code model.RoomCode, moves ...int) *model.Room {
	var room *model.Room
	for i, cell := range moves {
		mover := s.alice.ID
		if i%2 == 1 {
			mover = s.bob.ID
		}
		var err error
		room, err = s.controller.SubmitMove(s.ctx, code, mover, cell)
		s.Require().NoError(err)
	}
	return room
}

// CreateRoom tests

func (s *ControllerSuite) TestCreateRoomSeatsCreatorAsX() {
	s.random.QueueString("ABC234")

	room, err := s.controller.CreateRoom(s.ctx, s.alice, true)
	s.Require().NoError(err)

	s.Equal(model.RoomCode("ABC234"), room.Code)
	s.Equal(s.alice.Ref(), room.PlayerX)
	s.True(room.PlayerO.IsZero())
	s.Equal(model.RoomStatusPending, room.Status)
	s.Equal(s.alice.ID, room.TurnOwner)
	s.True(room.IsPublic)
	s.Equal(model.NewBoard(), room.Board)
	s.NotEmpty(room.ID)
}

func (s *ControllerSuite) TestCreateRoomRetriesOnCodeCollision() {
	s.random.QueueString("ABC234", "ABC234", "XYZ789")

	first, err := s.controller.CreateRoom(s.ctx, s.alice, false)
	s.Require().NoError(err)
	second, err := s.controller.CreateRoom(s.ctx, s.bob, false)
	s.Require().NoError(err)

	s.Equal(model.RoomCode("ABC234"), first.Code)
	s.Equal(model.RoomCode("XYZ789"), second.Code)
}

func (s *ControllerSuite) TestCreateMatchedRoomIsActiveAndPrivate() {
	room, err := s.controller.CreateMatchedRoom(s.ctx, s.alice, s.bob)
	s.Require().NoError(err)

	s.Equal(model.RoomStatusActive, room.Status)
	s.False(room.IsPublic)
	s.Equal(s.alice.ID, room.TurnOwner)
	s.Equal(s.bob.Ref(), room.PlayerO)
}

func (s *ControllerSuite) TestListPublicRoomsShowsOnlyPendingPublic() {
	s.random.QueueString("PUBAAA", "PRIVAA", "PUBBBB")
	public, _ := s.controller.CreateRoom(s.ctx, s.alice, true)
	_, _ = s.controller.CreateRoom(s.ctx, s.alice, false)
	filled, _ := s.controller.CreateRoom(s.ctx, s.bob, true)
	_, _ = s.controller.JoinRoom(s.ctx, filled.Code, s.carol)

	rooms, err := s.controller.ListPublicRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)
	s.Equal(public.Code, rooms[0].Code)
}

// JoinRoom tests

func (s *ControllerSuite) TestJoinRoomActivatesAndNotifies() {
	s.random.QueueString("ABC234")
	room, _ := s.controller.CreateRoom(s.ctx, s.alice, true)

	joined, err := s.controller.JoinRoom(s.ctx, room.Code, s.bob)
	s.Require().NoError(err)

	s.Equal(model.RoomStatusActive, joined.Status)
	s.Equal(s.bob.Ref(), joined.PlayerO)
	s.Equal(s.alice.ID, joined.TurnOwner)

	updates := s.publisher.ToTopic(model.RoomTopic(room.Code), model.EventGameUpdate)
	s.Len(updates, 1)

	notices := s.publisher.ToUser(s.alice.ID, model.EventPlayerJoined)
	s.Require().Len(notices, 1)
	s.Equal("bob", notices[0].Payload.(model.PlayerJoinedPayload).JoiningPlayerUsername)
}

func (s *ControllerSuite) TestJoinRoomNotFound() {
	_, err := s.controller.JoinRoom(s.ctx, "NOPE22", s.bob)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestJoinRoomFull() {
	room := s.activeRoom()

	_, err := s.controller.JoinRoom(s.ctx, room.Code, s.carol)
	s.ErrorIs(err, model.ErrRoomFull)
}

func (s *ControllerSuite) TestJoinRoomAlreadyFinished() {
	room := s.activeRoom()
	s.play(room.Code, 0, 3, 1, 4, 2)

	_, err := s.controller.JoinRoom(s.ctx, room.Code, s.carol)
	s.ErrorIs(err, model.ErrAlreadyFinished)
}

func (s *ControllerSuite) TestJoinRoomResumesSeatByIdentity() {
	room := s.activeRoom()
	s.play(room.Code, 4)

	again, err := s.controller.JoinRoom(s.ctx, room.Code, s.bob)
	s.Require().NoError(err)
	s.Equal(model.MarkX, again.Board[4])
	s.Equal(s.bob.ID, again.TurnOwner)
	s.Empty(s.publisher.ToTopic(model.RoomTopic(room.Code), model.EventGameUpdate)[1:])
}

// SubmitMove tests

func (s *ControllerSuite) TestSubmitMoveFlipsTurn() {
	room := s.activeRoom()

	updated, err := s.controller.SubmitMove(s.ctx, room.Code, s.alice.ID, 4)
	s.Require().NoError(err)

	s.Equal(model.MarkX, updated.Board[4])
	s.Equal(s.bob.ID, updated.TurnOwner)
	s.Equal(model.RoomStatusActive, updated.Status)
	s.Len(s.publisher.ToTopic(model.RoomTopic(room.Code), model.EventGameUpdate), 1)
	s.Empty(s.publisher.ToTopic(model.RoomTopic(room.Code), model.EventGameOver))
}

func (s *ControllerSuite) TestSubmitMoveRejectsPendingRoom() {
	s.random.QueueString("ABC234")
	room, _ := s.controller.CreateRoom(s.ctx, s.alice, true)

	_, err := s.controller.SubmitMove(s.ctx, room.Code, s.alice.ID, 0)
	s.ErrorIs(err, model.ErrRoomNotActive)
}

func (s *ControllerSuite) TestSubmitMoveRejectsWrongTurn() {
	room := s.activeRoom()

	_, err := s.controller.SubmitMove(s.ctx, room.Code, s.bob.ID, 0)
	s.ErrorIs(err, model.ErrNotYourTurn)

	_, err = s.controller.SubmitMove(s.ctx, room.Code, s.carol.ID, 0)
	s.ErrorIs(err, model.ErrNotYourTurn)
}

func (s *ControllerSuite) TestSubmitMoveRejectsInvalidCells() {
	room := s.activeRoom()
	s.play(room.Code, 4, 0)

	for _, cell := range []int{-1, 9, 4, 0} {
		_, err := s.controller.SubmitMove(s.ctx, room.Code, s.alice.ID, cell)
		s.ErrorIs(err, model.ErrInvalidCell, "cell %d", cell)
	}
}

func (s *ControllerSuite) TestSubmitMoveTopRowWinsForX() {
	room := s.activeRoom()

	final := s.play(room.Code, 0, 3, 1, 4, 2)

	s.Equal(model.RoomStatusXWins, final.Status)
	s.Equal(s.alice.Ref(), final.Winner)
	s.Empty(final.TurnOwner)

	overs := s.publisher.ToTopic(model.RoomTopic(room.Code), model.EventGameOver)
	s.Require().Len(overs, 1)
	payload := overs[0].Payload.(model.GameOverPayload)
	s.Equal(model.MarkX, payload.Winner)
	s.False(payload.Draw)

	winner, err := s.storage.GetUser(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(1, winner.Wins)

	_, err = s.controller.SubmitMove(s.ctx, room.Code, s.bob.ID, 8)
	s.ErrorIs(err, model.ErrRoomNotActive)
}

func (s *ControllerSuite) TestSubmitMoveOWins() {
	room := s.activeRoom()

	final := s.play(room.Code, 0, 2, 1, 4, 8, 6)

	s.Equal(model.RoomStatusOWins, final.Status)
	s.Equal(s.bob.Ref(), final.Winner)
}

func (s *ControllerSuite) TestSubmitMoveDraw() {
	room := s.activeRoom()

	// X O X / X O O / O X X
	final := s.play(room.Code, 0, 1, 2, 4, 3, 5, 7, 6, 8)

	s.Equal(model.RoomStatusDraw, final.Status)
	s.True(final.Winner.IsZero())

	overs := s.publisher.ToTopic(model.RoomTopic(room.Code), model.EventGameOver)
	s.Require().Len(overs, 1)
	s.True(overs[0].Payload.(model.GameOverPayload).Draw)

	for _, u := range []model.UserID{s.alice.ID, s.bob.ID} {
		user, _ := s.storage.GetUser(s.ctx, u)
		s.Equal(0, user.Wins)
	}
}

func (s *ControllerSuite) TestConcurrentMovesOnlyOneWins() {
	room := s.activeRoom()

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(cell int) {
			defer wg.Done()
			_, err := s.controller.SubmitMove(s.ctx, room.Code, s.alice.ID, cell%model.BoardCells)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, model.ErrNotYourTurn):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, accepted)
	s.Equal(attempts-1, rejected)

	final, err := s.controller.GetRoom(s.ctx, room.Code)
	s.Require().NoError(err)
	s.Equal(1, final.Board.Moves())
	s.Equal(0, s.controller.locks.Len())
}

func (s *ControllerSuite) TestAlternatingMarksNeverRepeat() {
	room := s.activeRoom()

	// Both players hammer every cell; marks must still alternate
	var wg sync.WaitGroup
	for _, u := range []model.UserID{s.alice.ID, s.bob.ID} {
		wg.Add(1)
		go func(id model.UserID) {
			defer wg.Done()
			for round := 0; round < 20; round++ {
				for cell := 0; cell < model.BoardCells; cell++ {
					_, _ = s.controller.SubmitMove(s.ctx, room.Code, id, cell)
				}
			}
		}(u)
	}
	wg.Wait()

	final, err := s.controller.GetRoom(s.ctx, room.Code)
	s.Require().NoError(err)

	xs, os := 0, 0
	for _, m := range final.Board {
		switch m {
		case model.MarkX:
			xs++
		case model.MarkO:
			os++
		}
	}
	s.True(xs == os || xs == os+1, "X=%d O=%d", xs, os)
}
