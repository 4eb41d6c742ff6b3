package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

const (
	alice model.UserID = "alice-id"
	bob   model.UserID = "bob-id"
)

// script plays X to a diagonal win: X4 O0 X2 O1 X6
func script() []*model.Room {
	room := &model.Room{
		ID:        "room-uuid",
		Code:      "ABC234",
		PlayerX:   model.UserRef{ID: alice, Username: "alice"},
		PlayerO:   model.UserRef{ID: bob, Username: "bob"},
		Board:     model.NewBoard(),
		TurnOwner: alice,
		Status:    model.RoomStatusActive,
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	states := []*model.Room{room.Clone()}
	for i, cell := range []int{4, 0, 2, 1, 6} {
		room = room.Clone()
		if i%2 == 0 {
			room.Board[cell] = model.MarkX
			room.TurnOwner = bob
		} else {
			room.Board[cell] = model.MarkO
			room.TurnOwner = alice
		}
		states = append(states, room)
	}
	last := states[len(states)-1]
	last.Status = model.RoomStatusXWins
	last.TurnOwner = ""
	last.Winner = last.PlayerX
	return states
}

func frame(t *testing.T, event model.Event, viewer model.UserID) wire.Envelope {
	t.Helper()
	raw, err := wire.Encode(event, viewer)
	require.NoError(t, err)
	var env wire.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func update(t *testing.T, r *model.Room) wire.Envelope {
	return frame(t, model.Event{Type: model.EventGameUpdate, Payload: r}, alice)
}

func gameOver(t *testing.T, r *model.Room) wire.Envelope {
	return frame(t, model.Event{
		Type:    model.EventGameOver,
		Payload: model.GameOverPayload{Room: r, Winner: model.MarkX},
	}, alice)
}

func snapshot(r *model.Room) wire.Room {
	return wire.RoomFromModel(r, alice)
}

func TestRoomMirrorAppliesUpdatesInOrder(t *testing.T) {
	states := script()
	m := NewRoomMirror("abc234", alice)

	require.True(t, m.LoadSnapshot(snapshot(states[0])))
	for _, r := range states[1:] {
		assert.True(t, m.Apply(update(t, r)))
	}

	v := m.View()
	assert.Equal(t, states[5].Board, v.Board)
	assert.Equal(t, model.RoomStatusXWins, v.Room.Status)
	require.NotNil(t, v.Result)
	assert.Equal(t, model.MarkX, v.Result.Winner)
	assert.False(t, v.Result.Draw)
}

func TestRoomMirrorDropsOlderUpdates(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)
	m.LoadSnapshot(snapshot(states[0]))

	require.True(t, m.Apply(update(t, states[3])))
	seq := m.Seq()

	assert.False(t, m.Apply(update(t, states[2])))
	assert.False(t, m.Apply(update(t, states[3])), "a repeat is a no-op")
	assert.Equal(t, seq, m.Seq())
	assert.Equal(t, states[3].Board, m.View().Board)
}

func TestRoomMirrorGameOverIsIdempotent(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)
	m.LoadSnapshot(snapshot(states[4]))

	require.True(t, m.Apply(gameOver(t, states[5])))
	seq := m.Seq()
	result := m.View().Result

	assert.False(t, m.Apply(gameOver(t, states[5])))
	assert.False(t, m.Apply(update(t, states[5])))
	assert.Equal(t, seq, m.Seq())
	assert.Equal(t, result, m.View().Result)
}

func TestRoomMirrorReconnectConvergesWithUninterruptedMirror(t *testing.T) {
	states := script()

	steady := NewRoomMirror("ABC234", alice)
	steady.LoadSnapshot(snapshot(states[0]))
	for _, r := range states[1:] {
		steady.Apply(update(t, r))
	}
	steady.Apply(gameOver(t, states[5]))

	flaky := NewRoomMirror("ABC234", alice)
	flaky.LoadSnapshot(snapshot(states[0]))
	flaky.Apply(update(t, states[1]))

	// Channel drops; state 2 is missed entirely, state 3 arrives before the refetch completes
	flaky.Apply(wire.Envelope{Event: EventReconnected})
	assert.True(t, flaky.View().Stale)
	assert.False(t, flaky.Apply(update(t, states[3])))

	require.True(t, flaky.LoadSnapshot(snapshot(states[3])))
	assert.False(t, flaky.View().Stale)
	flaky.Apply(update(t, states[4]))
	flaky.Apply(update(t, states[5]))
	flaky.Apply(gameOver(t, states[5]))

	want, got := steady.View(), flaky.View()
	assert.Equal(t, want.Room, got.Room)
	assert.Equal(t, want.Board, got.Board)
	assert.Equal(t, want.Result, got.Result)
}

func TestRoomMirrorBuffersUntilFirstSnapshot(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)

	assert.False(t, m.Apply(update(t, states[1])))
	assert.Nil(t, m.View().Room)

	require.True(t, m.LoadSnapshot(snapshot(states[0])))
	assert.Equal(t, states[1].Board, m.View().Board)
}

func TestRoomMirrorJoinAckActsAsSnapshot(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)

	ack := frame(t, model.Event{Type: model.EventGameJoined, Payload: states[2]}, alice)
	require.True(t, m.Apply(ack))
	assert.Equal(t, states[2].Board, m.View().Board)
}

func TestRoomMirrorIgnoresStaleSnapshotOnceLive(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)
	m.LoadSnapshot(snapshot(states[2]))

	assert.False(t, m.LoadSnapshot(snapshot(states[1])))
	assert.Equal(t, states[2].Board, m.View().Board)
}

func TestRoomMirrorIgnoresOtherRooms(t *testing.T) {
	states := script()
	m := NewRoomMirror("XYZ789", alice)

	assert.False(t, m.LoadSnapshot(snapshot(states[0])))
	assert.False(t, m.Apply(update(t, states[1])))
	assert.Nil(t, m.View().Room)
}

func TestRoomMirrorOptimisticMoveRevertsOnError(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)
	m.LoadSnapshot(snapshot(states[0]))

	require.True(t, m.Propose(4))
	v := m.View()
	assert.Equal(t, 4, v.Pending)
	assert.Equal(t, model.MarkX, v.Board[4])
	assert.True(t, v.Room.Board.IsEmpty(4))
	assert.False(t, m.Propose(5), "one pending move at a time")

	rejected := frame(t, model.Event{Type: model.EventError, Payload: model.ErrorPayload{Message: "Not your turn"}}, alice)
	require.True(t, m.Apply(rejected))
	v = m.View()
	assert.Equal(t, -1, v.Pending)
	assert.True(t, v.Board.IsEmpty(4))
}

func TestRoomMirrorOptimisticMoveClearedByUpdate(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)
	m.LoadSnapshot(snapshot(states[0]))

	require.True(t, m.Propose(4))
	require.True(t, m.Apply(update(t, states[1])))
	assert.Equal(t, -1, m.View().Pending)
	assert.Equal(t, model.MarkX, m.View().Board[4])
}

func TestRoomMirrorProposeRequiresTurn(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", bob)
	m.LoadSnapshot(snapshot(states[0]))

	assert.False(t, m.Propose(0))

	m.Apply(update(t, states[1]))
	assert.False(t, m.Propose(4), "cell is taken")
	assert.True(t, m.Propose(0))
}

func TestRosterMirror(t *testing.T) {
	m := NewRosterMirror()
	roster := frame(t, model.Event{
		Type:    model.EventAvailablePlayers,
		Payload: model.RosterPayload{Entries: []model.RosterEntry{{UserID: bob, Username: "bob"}}},
	}, alice)

	require.True(t, m.Apply(roster))
	assert.True(t, m.Contains(bob))
	assert.False(t, m.Load(nil), "pushes win over a late fetch")

	m.Apply(wire.Envelope{Event: EventReconnected})
	assert.True(t, m.Stale())
	require.True(t, m.Load([]wire.RosterEntry{}))
	assert.False(t, m.Contains(bob))
	assert.False(t, m.Stale())
}

func TestRosterMirrorRecordsDirectMatchOnce(t *testing.T) {
	states := script()
	m := NewRosterMirror()
	started := frame(t, model.Event{
		Type:    model.EventGameStartedDirect,
		Payload: model.DirectStartPayload{Message: "Game started", Room: states[0], Viewer: alice},
	}, alice)

	require.True(t, m.Apply(started))
	assert.False(t, m.Apply(started))
	require.NotNil(t, m.Match())
	assert.Equal(t, "ABC234", m.Match().GameDetails.RoomID)
}

func TestFeedMirror(t *testing.T) {
	m := NewFeedMirror()
	require.True(t, m.Load([]wire.Friend{{ID: string(bob), Username: "bob"}}, nil))

	online := frame(t, model.Event{
		Type:    model.EventFriendStatus,
		Payload: model.FriendStatusPayload{UserID: bob, Username: "bob", Online: true},
	}, alice)
	require.True(t, m.Apply(online))
	assert.True(t, m.Online(bob))
	assert.False(t, m.Apply(online), "repeat status is a no-op")

	stranger := frame(t, model.Event{
		Type:    model.EventFriendStatus,
		Payload: model.FriendStatusPayload{UserID: "carol-id", Username: "carol", Online: true},
	}, alice)
	assert.False(t, m.Apply(stranger))

	received := frame(t, model.Event{
		Type:    model.EventFriendRequestReceived,
		Payload: model.FriendRequestReceivedPayload{RequestID: "req-1", RequesterID: "carol-id", RequesterUsername: "carol"},
	}, alice)
	require.True(t, m.Apply(received))
	assert.False(t, m.Apply(received))
	require.Len(t, m.Requests(), 1)
	assert.Equal(t, "carol", m.Requests()[0].RequesterUsername)

	responded := frame(t, model.Event{
		Type: model.EventFriendRequestResponded,
		Payload: model.FriendRequestRespondedPayload{
			RequestID:         "req-2",
			AddresseeID:       "dave-id",
			AddresseeUsername: "dave",
			Status:            model.FriendStatusAccepted,
		},
	}, alice)
	require.True(t, m.Apply(responded))
	assert.False(t, m.Apply(responded))
	assert.Len(t, m.Responses(), 1)
}

func TestRoomMirrorTracksDisconnect(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)
	m.LoadSnapshot(snapshot(states[0]))

	require.True(t, m.Apply(wire.Envelope{Event: EventDisconnected}))
	assert.True(t, m.View().Disconnected)
	assert.False(t, m.Apply(wire.Envelope{Event: EventDisconnected}))

	require.True(t, m.MarkDisconnected(3))
	assert.Equal(t, 3, m.View().ReconnectAttempts)
	assert.False(t, m.MarkDisconnected(2), "attempts never go backwards")
	require.True(t, m.MarkDisconnected(4))

	require.True(t, m.Apply(wire.Envelope{Event: EventReconnected}))
	v := m.View()
	assert.False(t, v.Disconnected)
	assert.Zero(t, v.ReconnectAttempts)
	assert.True(t, v.Stale)
}

func TestRoomMirrorRejectionClearedByUpdate(t *testing.T) {
	states := script()
	m := NewRoomMirror("ABC234", alice)
	m.LoadSnapshot(snapshot(states[0]))

	rejected := frame(t, model.Event{Type: model.EventError, Payload: model.ErrorPayload{Message: "Cell is already taken"}}, alice)
	require.True(t, m.Apply(rejected))
	assert.Equal(t, "Cell is already taken", m.View().Rejected)

	require.True(t, m.Apply(update(t, states[1])))
	assert.Empty(t, m.View().Rejected)
}

func TestFeedMirrorDropsAnsweredRequests(t *testing.T) {
	m := NewFeedMirror()
	require.True(t, m.Load(nil, []wire.FriendRequest{
		{RequestID: "req-1", RequesterID: string(bob), RequesterUsername: "bob"},
		{RequestID: "req-2", RequesterID: "carol-id", RequesterUsername: "carol"},
	}))
	require.Len(t, m.Requests(), 2)

	accepted := frame(t, model.Event{
		Type:    model.EventFriendListUpdate,
		Payload: model.FriendListPayload{Friends: []model.Friend{{ID: bob, Username: "bob"}}},
	}, alice)
	require.True(t, m.Apply(accepted))
	require.Len(t, m.Requests(), 1)
	assert.Equal(t, "req-2", m.Requests()[0].RequestID)

	require.True(t, m.Resolve("req-2"))
	assert.False(t, m.Resolve("req-2"))
	assert.Empty(t, m.Requests())
}

func TestFeedMirrorLoadReplacesRequests(t *testing.T) {
	m := NewFeedMirror()
	m.Load(nil, nil)

	received := frame(t, model.Event{
		Type:    model.EventFriendRequestReceived,
		Payload: model.FriendRequestReceivedPayload{RequestID: "req-1", RequesterID: "carol-id", RequesterUsername: "carol"},
	}, alice)
	require.True(t, m.Apply(received))
	require.Len(t, m.Requests(), 1)

	// Declined elsewhere, so the next fetch no longer lists it
	require.True(t, m.Load(nil, []wire.FriendRequest{}))
	assert.Empty(t, m.Requests())
}

func TestFeedMirrorTracksDisconnect(t *testing.T) {
	m := NewFeedMirror()
	m.Load(nil, nil)

	require.True(t, m.Apply(wire.Envelope{Event: EventDisconnected}))
	require.True(t, m.MarkDisconnected(5))
	v := m.View()
	assert.True(t, v.Disconnected)
	assert.Equal(t, 5, v.ReconnectAttempts)

	require.True(t, m.Apply(wire.Envelope{Event: EventReconnected}))
	v = m.View()
	assert.False(t, v.Disconnected)
	assert.True(t, v.Stale)
}
