package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// Session lifecycle events; every subscription receives them regardless of its filter
const (
	EventDisconnected model.EventType = "session_disconnected"
	// EventReconnectFailing repeats after every failed attempt once SessionConfig.FailingAfter is reached
	EventReconnectFailing model.EventType = "session_reconnect_failing"
	EventReconnected      model.EventType = "session_reconnected"
	EventTerminated       model.EventType = "session_terminated"
)

// roomEvents are the frames a room subscription receives
var roomEvents = []model.EventType{
	model.EventGameJoined,
	model.EventGameUpdate,
	model.EventGameOver,
	model.EventPlayerJoined,
	model.EventError,
}

// Event is one frame from the channel, or a session lifecycle change
type Event struct {
	wire.Envelope
	// Err is set on EventTerminated and EventReconnectFailing
	Err error
	// Attempt counts failed reconnects on EventReconnectFailing
	Attempt int
}

// State is the connection state of a Session
type State int

const (
	StateIdle State = iota
	StateConnected
	StateReconnecting
	StateTerminated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// SessionConfig tunes the channel and its reconnect policy
type SessionConfig struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws
	URL    string
	Dialer *websocket.Dialer

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	// SubscriptionBuffer bounds undelivered events per subscription
	SubscriptionBuffer int
	// FailingAfter is how many failed reconnects pass before subscribers hear about them
	FailingAfter int

	Logger *slog.Logger
}

// DefaultSessionConfig returns settings matching the server's keepalive
func DefaultSessionConfig(channelURL string) SessionConfig {
	return SessionConfig{
		URL:                channelURL,
		Dialer:             websocket.DefaultDialer,
		HandshakeTimeout:   5 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       10 * time.Second,
		InitialBackoff:     250 * time.Millisecond,
		MaxBackoff:         10 * time.Second,
		SubscriptionBuffer: 256,
		FailingAfter:       3,
	}
}

// Session owns the single push channel of a client process
// It reconnects on transport failures and re-joins held rooms; a policy close ends it for good
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	mu     sync.Mutex
	token  string
	ws     *websocket.Conn
	state  State
	userID model.UserID
	gen    int
	stop   chan struct{}
	rooms  map[model.RoomCode]int
	subs   map[*Subscription]struct{}

	writeMu sync.Mutex
}

// NewSession creates an idle session
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.FailingAfter <= 0 {
		cfg.FailingAfter = 1
	}
	return &Session{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "session")),
		rooms:  make(map[model.RoomCode]int),
		subs:   make(map[*Subscription]struct{}),
	}
}

// State returns the current connection state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the identity bound at the last handshake
func (s *Session) UserID() model.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Connect opens the channel with the token, replacing any channel already open
// It fails with ErrAuthRejected when the server refuses the token; no channel is left open
func (s *Session) Connect(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	old := s.detachLocked()
	replaced := old != nil || s.state == StateReconnecting
	s.state = StateIdle
	s.mu.Unlock()
	s.closeWS(old)

	ws, userID, err := s.dial(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		_ = ws.Close()
		return ErrNotConnected
	}
	s.gen++
	gen := s.gen
	s.token = token
	s.userID = userID
	s.ws = ws
	s.state = StateConnected
	s.stop = make(chan struct{})
	rooms := s.heldRoomsLocked()
	s.mu.Unlock()

	if replaced {
		s.dispatch(Event{Envelope: wire.Envelope{Event: EventReconnected}})
	}
	s.rejoin(ws, rooms)
	go s.readLoop(ws, gen)

	s.logger.Info("channel connected", slog.String("user_id", string(userID)))
	return nil
}

// Close tears down the channel and releases every subscription
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	old := s.detachLocked()
	s.state = StateClosed
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	clear(s.subs)
	clear(s.rooms)
	s.mu.Unlock()

	s.closeWS(old)
	for _, sub := range subs {
		sub.close()
	}
}

// detachLocked stops the current channel and any reconnect loop without touching subscriptions
func (s *Session) detachLocked() *websocket.Conn {
	s.gen++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	old := s.ws
	s.ws = nil
	return old
}

func (s *Session) closeWS(ws *websocket.Conn) {
	if ws == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
	_ = ws.Close()
}

// dial performs the websocket upgrade and waits for the connected acknowledgement
func (s *Session) dial(ctx context.Context, token string) (*websocket.Conn, model.UserID, error) {
	if token == "" {
		return nil, "", fmt.Errorf("%w: no token", ErrAuthRejected)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	ws, resp, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, "", ErrAuthRejected
		}
		return nil, "", fmt.Errorf("%w: dial: %v", ErrTransient, err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	var env wire.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		_ = ws.Close()
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
			return nil, "", ErrAuthRejected
		}
		return nil, "", fmt.Errorf("%w: handshake: %v", ErrTransient, err)
	}

	switch env.Event {
	case model.EventConnected:
		ack, err := wire.Decode[wire.Connected](env)
		if err != nil {
			_ = ws.Close()
			return nil, "", fmt.Errorf("%w: handshake: %v", ErrTransient, err)
		}
		return ws, model.UserID(ack.UserID), nil
	case model.EventAuthError:
		_ = ws.Close()
		payload, _ := wire.Decode[wire.Error](env)
		return nil, "", fmt.Errorf("%w: %s", ErrAuthRejected, payload.Message)
	default:
		_ = ws.Close()
		return nil, "", fmt.Errorf("%w: unexpected handshake frame %q", ErrTransient, env.Event)
	}
}

func (s *Session) readLoop(ws *websocket.Conn, gen int) {
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
	})

	for {
		_ = ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.dropped(gen, err)
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("malformed frame ignored", slog.Any("error", err))
			continue
		}
		s.dispatch(Event{Envelope: env})
	}
}

// dropped decides between terminating and reconnecting after the channel fails
func (s *Session) dropped(gen int, cause error) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnected {
		// Torn down on purpose
		s.mu.Unlock()
		return
	}
	s.ws = nil

	var closeErr *websocket.CloseError
	if errors.As(cause, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
		s.state = StateTerminated
		s.mu.Unlock()
		s.logger.Warn("channel severed by server", slog.String("reason", closeErr.Text))
		s.dispatch(Event{Envelope: wire.Envelope{Event: EventTerminated}, Err: ErrSessionTerminated})
		return
	}

	s.state = StateReconnecting
	stop := s.stop
	token := s.token
	s.mu.Unlock()

	s.logger.Info("channel lost, reconnecting", slog.Any("error", cause))
	s.dispatch(Event{Envelope: wire.Envelope{Event: EventDisconnected}})
	go s.reconnect(gen, token, stop)
}

func (s *Session) reconnect(gen int, token string, stop <-chan struct{}) {
	backoff := s.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-stop:
			return
		case <-time.After(backoff):
		}

		ws, _, err := s.dial(context.Background(), token)
		if err == nil {
			s.mu.Lock()
			if gen != s.gen || s.state != StateReconnecting {
				s.mu.Unlock()
				_ = ws.Close()
				return
			}
			s.gen++
			newGen := s.gen
			s.ws = ws
			s.state = StateConnected
			rooms := s.heldRoomsLocked()
			s.mu.Unlock()

			s.logger.Info("channel reconnected", slog.Int("attempt", attempt))
			s.dispatch(Event{Envelope: wire.Envelope{Event: EventReconnected}})
			s.rejoin(ws, rooms)
			go s.readLoop(ws, newGen)
			return
		}

		if errors.Is(err, ErrAuthRejected) {
			s.mu.Lock()
			current := gen == s.gen && s.state == StateReconnecting
			if current {
				s.state = StateTerminated
			}
			s.mu.Unlock()
			if current {
				s.dispatch(Event{Envelope: wire.Envelope{Event: EventTerminated}, Err: err})
			}
			return
		}

		s.logger.Warn("reconnect failed", slog.Int("attempt", attempt), slog.Any("error", err))
		if attempt >= s.cfg.FailingAfter && s.reconnecting(gen) {
			s.dispatch(Event{Envelope: wire.Envelope{Event: EventReconnectFailing}, Err: err, Attempt: attempt})
		}
		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}
}

func (s *Session) reconnecting(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && s.state == StateReconnecting
}

func (s *Session) heldRoomsLocked() []model.RoomCode {
	rooms := make([]model.RoomCode, 0, len(s.rooms))
	for code := range s.rooms {
		rooms = append(rooms, code)
	}
	return rooms
}

// rejoin restores room memberships; the server forgets them with the old channel
func (s *Session) rejoin(ws *websocket.Conn, rooms []model.RoomCode) {
	for _, code := range rooms {
		if err := s.write(ws, model.CommandJoinGameRoom, wire.RoomCommand{RoomID: string(code)}); err != nil {
			s.logger.Warn("re-join failed", slog.String("room_code", string(code)), slog.Any("error", err))
		}
	}
}

// Send writes a command frame on the live channel
func (s *Session) Send(event model.EventType, data any) error {
	s.mu.Lock()
	ws, state := s.ws, s.state
	s.mu.Unlock()

	if state == StateTerminated {
		return ErrSessionTerminated
	}
	if ws == nil {
		return ErrNotConnected
	}
	return s.write(ws, event, data)
}

func (s *Session) write(ws *websocket.Conn, event model.EventType, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := ws.WriteJSON(wire.Envelope{ID: uuid.NewString(), Event: event, Data: raw}); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrTransient, event, err)
	}
	return nil
}

// MakeMove submits a move over the channel; rejections arrive as error events
func (s *Session) MakeMove(code string, index int) error {
	return s.Send(model.CommandMakeMove, wire.MoveCommand{RoomID: string(model.ParseRoomCode(code)), Index: index})
}

// Subscribe receives the given event types plus lifecycle events; no types means everything
func (s *Session) Subscribe(types ...model.EventType) *Subscription {
	sub := newSubscription(s, "", types, s.cfg.SubscriptionBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		sub.close()
		return sub
	}
	s.subs[sub] = struct{}{}
	return sub
}

// JoinRoom subscribes to a room topic; the membership survives reconnects until the subscription is closed
func (s *Session) JoinRoom(code string) (*Subscription, error) {
	room := model.ParseRoomCode(code)
	sub := newSubscription(s, room, roomEvents, s.cfg.SubscriptionBuffer)

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrNotConnected
	case StateTerminated:
		s.mu.Unlock()
		return nil, ErrSessionTerminated
	}
	s.subs[sub] = struct{}{}
	s.rooms[room]++
	first := s.rooms[room] == 1
	ws := s.ws
	s.mu.Unlock()

	if first && ws != nil {
		if err := s.write(ws, model.CommandJoinGameRoom, wire.RoomCommand{RoomID: string(room)}); err != nil {
			// The reconnect path re-joins held rooms
			s.logger.Warn("join failed", slog.String("room_code", string(room)), slog.Any("error", err))
		}
	}
	return sub, nil
}

func (s *Session) release(sub *Subscription) {
	s.mu.Lock()
	if _, ok := s.subs[sub]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subs, sub)

	leave := false
	if sub.room != "" {
		s.rooms[sub.room]--
		if s.rooms[sub.room] <= 0 {
			delete(s.rooms, sub.room)
			leave = true
		}
	}
	ws := s.ws
	s.mu.Unlock()

	sub.close()
	if leave && ws != nil {
		if err := s.write(ws, model.CommandLeaveGameRoom, wire.RoomCommand{RoomID: string(sub.room)}); err != nil {
			s.logger.Debug("leave failed", slog.String("room_code", string(sub.room)), slog.Any("error", err))
		}
	}
}

// dispatch hands an event to every interested subscription in arrival order
func (s *Session) dispatch(ev Event) {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.wants(ev.Event) {
			sub.push(ev)
		}
	}
}

// Subscription is a scoped view of the channel; Close releases it
type Subscription struct {
	session *Session
	room    model.RoomCode
	filter  map[model.EventType]struct{}

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func newSubscription(s *Session, room model.RoomCode, types []model.EventType, buffer int) *Subscription {
	var filter map[model.EventType]struct{}
	if len(types) > 0 {
		filter = make(map[model.EventType]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}
	return &Subscription{
		session: s,
		room:    room,
		filter:  filter,
		ch:      make(chan Event, buffer),
	}
}

// Events delivers matching events; it is closed when the subscription ends
func (sub *Subscription) Events() <-chan Event {
	return sub.ch
}

// Room returns the room this subscription joined, if any
func (sub *Subscription) Room() model.RoomCode {
	return sub.room
}

// Close releases the subscription and leaves its room when no other subscription holds it
func (sub *Subscription) Close() {
	sub.session.release(sub)
}

func (sub *Subscription) wants(t model.EventType) bool {
	switch t {
	case EventDisconnected, EventReconnectFailing, EventReconnected, EventTerminated:
		return true
	}
	if sub.filter == nil {
		return true
	}
	_, ok := sub.filter[t]
	return ok
}

func (sub *Subscription) push(ev Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- ev:
	default:
		sub.session.logger.Warn("event dropped - subscription buffer full", slog.String("event", string(ev.Event)))
	}
}

func (sub *Subscription) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}
