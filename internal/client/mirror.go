package client

import (
	"slices"
	"strings"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// GameResult is the outcome of a finished room
type GameResult struct {
	Winner model.Mark
	Draw   bool
}

// RoomView is what a caller renders: authoritative state plus at most one optimistic mark
type RoomView struct {
	// Room is nil until the first snapshot arrives
	Room *model.Room
	// Board overlays the pending optimistic mark on the authoritative board
	Board model.Board
	// Pending is the optimistically marked cell, or -1
	Pending int
	Seq     uint64
	Stale   bool
	Result  *GameResult

	// Disconnected holds from a channel drop until the next reconnect
	Disconnected bool
	// ReconnectAttempts counts failed reconnects reported while disconnected
	ReconnectAttempts int
	// Rejected is the last error the server answered with, cleared by the next accepted change
	Rejected string
}

// RoomMirror holds a client's copy of one room and converges on the server state
// Pushed updates win over older local state; a snapshot wins only on first load or after Invalidate
type RoomMirror struct {
	code     model.RoomCode
	viewer   model.UserID
	room     *model.Room
	pending  int
	seq      uint64
	stale    bool
	buffered []wire.Envelope
	result   *GameResult

	disconnected bool
	attempts     int
	rejected     string
}

// NewRoomMirror creates an empty mirror for the room as seen by viewer
func NewRoomMirror(code string, viewer model.UserID) *RoomMirror {
	return &RoomMirror{
		code:    model.ParseRoomCode(code),
		viewer:  viewer,
		pending: -1,
	}
}

// Code returns the mirrored room
func (m *RoomMirror) Code() model.RoomCode {
	return m.code
}

// Seq increases on every applied change
func (m *RoomMirror) Seq() uint64 {
	return m.seq
}

// LoadSnapshot installs a fetched snapshot, then replays events buffered while stale
func (m *RoomMirror) LoadSnapshot(snap wire.Room) bool {
	if model.ParseRoomCode(snap.RoomID) != m.code {
		return false
	}
	room := snap.ToModel()

	if m.room != nil && !m.stale {
		return m.applyRoom(room)
	}

	m.room = room
	m.pending = -1
	m.stale = false
	m.seq++
	m.settle()

	buffered := m.buffered
	m.buffered = nil
	for _, env := range buffered {
		m.Apply(env)
	}
	return true
}

// Invalidate marks the state as possibly behind; room events are buffered until the next snapshot
func (m *RoomMirror) Invalidate() {
	m.stale = true
	m.buffered = nil
}

// Propose marks a cell optimistically; it is dropped on the next authoritative update or error
func (m *RoomMirror) Propose(cell int) bool {
	r := m.room
	if r == nil || m.stale || r.Status != model.RoomStatusActive || r.TurnOwner != m.viewer {
		return false
	}
	if cell < 0 || cell >= model.BoardCells || !r.Board.IsEmpty(cell) || m.pending >= 0 {
		return false
	}
	m.pending = cell
	m.seq++
	return true
}

// Apply folds one channel event into the mirror and reports whether the view changed
func (m *RoomMirror) Apply(env wire.Envelope) bool {
	switch env.Event {
	case model.EventGameJoined:
		snap, err := wire.Decode[wire.Room](env)
		if err != nil {
			return false
		}
		// Read after the server subscribed us, so it is as good as a fetched snapshot
		return m.LoadSnapshot(snap)

	case model.EventGameUpdate:
		snap, err := wire.Decode[wire.Room](env)
		if err != nil || !m.owns(snap) {
			return false
		}
		if m.holdBack(env) {
			return false
		}
		return m.applyRoom(snap.ToModel())

	case model.EventPlayerJoined:
		payload, err := wire.Decode[wire.PlayerJoined](env)
		if err != nil || !m.owns(payload.Game) {
			return false
		}
		if m.holdBack(env) {
			return false
		}
		return m.applyRoom(payload.Game.ToModel())

	case model.EventGameOver:
		payload, err := wire.Decode[wire.GameOver](env)
		if err != nil || !m.owns(payload.Game) {
			return false
		}
		if m.holdBack(env) {
			return false
		}
		changed := m.applyRoom(payload.Game.ToModel())
		if m.result == nil {
			m.result = &GameResult{Winner: model.Mark(payload.Winner), Draw: payload.Draw}
			m.seq++
			changed = true
		}
		return changed

	case model.EventError:
		payload, err := wire.Decode[wire.Error](env)
		if err != nil {
			return false
		}
		m.rejected = payload.Message
		m.pending = -1
		m.seq++
		return true

	case EventDisconnected:
		return m.MarkDisconnected(0)

	case EventReconnected:
		m.Invalidate()
		if !m.disconnected {
			return false
		}
		m.disconnected = false
		m.attempts = 0
		m.seq++
		return true
	}
	return false
}

// MarkDisconnected records a dropped channel; attempts is the failed reconnect count so far
func (m *RoomMirror) MarkDisconnected(attempts int) bool {
	if m.disconnected && attempts <= m.attempts {
		return false
	}
	m.disconnected = true
	m.attempts = max(m.attempts, attempts)
	m.seq++
	return true
}

func (m *RoomMirror) owns(snap wire.Room) bool {
	return model.ParseRoomCode(snap.RoomID) == m.code
}

// holdBack buffers room events that arrive before a base snapshot exists
func (m *RoomMirror) holdBack(env wire.Envelope) bool {
	if m.room != nil && !m.stale {
		return false
	}
	m.buffered = append(m.buffered, env)
	return true
}

// applyRoom accepts a room only if it is strictly ahead of the held state
func (m *RoomMirror) applyRoom(r *model.Room) bool {
	if m.room != nil {
		rank, moves := r.Progress()
		curRank, curMoves := m.room.Progress()
		if rank < curRank || (rank == curRank && moves <= curMoves) {
			return false
		}
	}
	m.room = r
	m.pending = -1
	m.rejected = ""
	m.seq++
	m.settle()
	return true
}

// settle records the result once the held room is terminal
func (m *RoomMirror) settle() {
	if m.result != nil || m.room == nil {
		return
	}
	switch m.room.Status {
	case model.RoomStatusXWins:
		m.result = &GameResult{Winner: model.MarkX}
	case model.RoomStatusOWins:
		m.result = &GameResult{Winner: model.MarkO}
	case model.RoomStatusDraw:
		m.result = &GameResult{Draw: true}
	}
}

// View returns a copy safe to hand to a renderer
func (m *RoomMirror) View() RoomView {
	v := RoomView{
		Pending:           m.pending,
		Seq:               m.seq,
		Stale:             m.stale,
		Board:             model.NewBoard(),
		Disconnected:      m.disconnected,
		ReconnectAttempts: m.attempts,
		Rejected:          m.rejected,
	}
	if m.room != nil {
		v.Room = m.room.Clone()
		v.Board = m.room.Board
		if m.pending >= 0 {
			if mark := m.room.MarkOf(m.viewer); mark != model.MarkEmpty {
				v.Board[m.pending] = mark
			}
		}
	}
	if m.result != nil {
		r := *m.result
		v.Result = &r
	}
	return v
}

// RosterMirror tracks the ready roster and the last direct match started for the viewer
type RosterMirror struct {
	entries []wire.RosterEntry
	match   *wire.RoomEnvelope
	loaded  bool
	stale   bool
	seq     uint64
}

// NewRosterMirror creates an empty roster mirror
func NewRosterMirror() *RosterMirror {
	return &RosterMirror{}
}

// Load installs a fetched roster; it is ignored once a push has been applied unless stale
func (m *RosterMirror) Load(entries []wire.RosterEntry) bool {
	if m.loaded && !m.stale {
		return false
	}
	m.entries = slices.Clone(entries)
	m.loaded = true
	m.stale = false
	m.seq++
	return true
}

// Apply folds a roster or direct-match event into the mirror
func (m *RosterMirror) Apply(env wire.Envelope) bool {
	switch env.Event {
	case model.EventAvailablePlayers:
		entries, err := wire.Decode[[]wire.RosterEntry](env)
		if err != nil {
			return false
		}
		m.entries = entries
		m.loaded = true
		m.stale = false
		m.seq++
		return true

	case model.EventGameInvite, model.EventGameStartedDirect:
		match, err := wire.Decode[wire.RoomEnvelope](env)
		if err != nil {
			return false
		}
		if m.match != nil && m.match.GameDetails.ID == match.GameDetails.ID {
			return false
		}
		m.match = &match
		m.seq++
		return true

	case EventReconnected:
		m.stale = true
	}
	return false
}

// Entries returns the roster in the order the server sent it
func (m *RosterMirror) Entries() []wire.RosterEntry {
	return slices.Clone(m.entries)
}

// Contains reports whether the user is on the roster
func (m *RosterMirror) Contains(id model.UserID) bool {
	return slices.ContainsFunc(m.entries, func(e wire.RosterEntry) bool { return e.ID == string(id) })
}

// Match returns the last direct match started for the viewer, if any
func (m *RosterMirror) Match() *wire.RoomEnvelope {
	return m.match
}

// Stale reports whether a reconnect happened since the last roster update
func (m *RosterMirror) Stale() bool {
	return m.stale
}

// Seq increases on every applied change
func (m *RosterMirror) Seq() uint64 {
	return m.seq
}

// FeedView is a rendered copy of a FeedMirror
type FeedView struct {
	Friends           []wire.Friend
	Requests          []wire.FriendRequest
	Responses         []wire.FriendRequestResponded
	Seq               uint64
	Stale             bool
	Disconnected      bool
	ReconnectAttempts int
}

// FeedMirror tracks the viewer's friends with presence plus friend request traffic
type FeedMirror struct {
	friends      map[string]wire.Friend
	requests     map[string]wire.FriendRequest
	responses    []wire.FriendRequestResponded
	loaded       bool
	stale        bool
	disconnected bool
	attempts     int
	seq          uint64
}

// NewFeedMirror creates an empty feed mirror
func NewFeedMirror() *FeedMirror {
	return &FeedMirror{
		friends:  make(map[string]wire.Friend),
		requests: make(map[string]wire.FriendRequest),
	}
}

// Load installs fetched friends and pending requests
// Friends follow the RosterMirror.Load rule; requests always take the fetched list, since
// answering one is never pushed back to the addressee
func (m *FeedMirror) Load(friends []wire.Friend, requests []wire.FriendRequest) bool {
	if !m.loaded || m.stale {
		m.setFriends(friends)
		m.loaded = true
		m.stale = false
	}
	clear(m.requests)
	for _, r := range requests {
		m.requests[r.RequestID] = r
	}
	m.dropAnswered()
	m.seq++
	return true
}

// Resolve removes a request the viewer answered
func (m *FeedMirror) Resolve(requestID string) bool {
	if _, ok := m.requests[requestID]; !ok {
		return false
	}
	delete(m.requests, requestID)
	m.seq++
	return true
}

func (m *FeedMirror) setFriends(friends []wire.Friend) {
	clear(m.friends)
	for _, f := range friends {
		m.friends[f.ID] = f
	}
}

// dropAnswered removes requests from users who are already friends
func (m *FeedMirror) dropAnswered() {
	for id, r := range m.requests {
		if _, ok := m.friends[r.RequesterID]; ok {
			delete(m.requests, id)
		}
	}
}

// Apply folds a friend event into the mirror; repeats are no-ops
func (m *FeedMirror) Apply(env wire.Envelope) bool {
	switch env.Event {
	case model.EventFriendListUpdate:
		friends, err := wire.Decode[[]wire.Friend](env)
		if err != nil {
			return false
		}
		m.setFriends(friends)
		m.dropAnswered()
		m.loaded = true
		m.stale = false
		m.seq++
		return true

	case model.EventFriendStatus:
		status, err := wire.Decode[wire.FriendStatus](env)
		if err != nil {
			return false
		}
		f, ok := m.friends[status.UserID]
		if !ok || f.Online == status.Online {
			return false
		}
		f.Online = status.Online
		m.friends[status.UserID] = f
		m.seq++
		return true

	case model.EventFriendRequestReceived:
		req, err := wire.Decode[wire.FriendRequest](env)
		if err != nil {
			return false
		}
		if _, ok := m.requests[req.RequestID]; ok {
			return false
		}
		m.requests[req.RequestID] = req
		m.seq++
		return true

	case model.EventFriendRequestResponded:
		resp, err := wire.Decode[wire.FriendRequestResponded](env)
		if err != nil {
			return false
		}
		if slices.ContainsFunc(m.responses, func(r wire.FriendRequestResponded) bool { return r.RequestID == resp.RequestID }) {
			return false
		}
		m.responses = append(m.responses, resp)
		m.seq++
		return true

	case EventDisconnected:
		return m.MarkDisconnected(0)

	case EventReconnected:
		m.stale = true
		if !m.disconnected {
			return false
		}
		m.disconnected = false
		m.attempts = 0
		m.seq++
		return true
	}
	return false
}

// MarkDisconnected records a dropped channel; attempts is the failed reconnect count so far
func (m *FeedMirror) MarkDisconnected(attempts int) bool {
	if m.disconnected && attempts <= m.attempts {
		return false
	}
	m.disconnected = true
	m.attempts = max(m.attempts, attempts)
	m.seq++
	return true
}

// View returns a copy safe to hand to a renderer
func (m *FeedMirror) View() FeedView {
	return FeedView{
		Friends:           m.Friends(),
		Requests:          m.Requests(),
		Responses:         m.Responses(),
		Seq:               m.seq,
		Stale:             m.stale,
		Disconnected:      m.disconnected,
		ReconnectAttempts: m.attempts,
	}
}

// Friends returns friends ordered by username
func (m *FeedMirror) Friends() []wire.Friend {
	out := make([]wire.Friend, 0, len(m.friends))
	for _, f := range m.friends {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b wire.Friend) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return out
}

// Online reports whether a known friend is online
func (m *FeedMirror) Online(id model.UserID) bool {
	return m.friends[string(id)].Online
}

// Requests returns pending requests addressed to the viewer, ordered by requester
func (m *FeedMirror) Requests() []wire.FriendRequest {
	out := make([]wire.FriendRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b wire.FriendRequest) int {
		return strings.Compare(a.RequesterUsername, b.RequesterUsername)
	})
	return out
}

// Responses returns answers to the viewer's own requests in arrival order
func (m *FeedMirror) Responses() []wire.FriendRequestResponded {
	return slices.Clone(m.responses)
}

// Stale reports whether a reconnect happened since the last friend list
func (m *FeedMirror) Stale() bool {
	return m.stale
}

// Seq increases on every applied change
func (m *FeedMirror) Seq() uint64 {
	return m.seq
}
