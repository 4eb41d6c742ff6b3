// Package push serves the bidirectional event channel over websockets.
package push

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// Config holds channel timing and buffer limits
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	SendBuffer     int
	MaxMessageSize int64

	// CheckOrigin is passed to the upgrader; nil accepts any origin
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the production channel settings
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     30 * time.Second,
		SendBuffer:     256,
		MaxMessageSize: 4096,
	}
}

// TokenValidator resolves bearer tokens presented at connect time
type TokenValidator interface {
	ValidateToken(token string) (*auth.Identity, error)
}

// Rooms is the slice of the room controller reachable from channel commands
type Rooms interface {
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	SubmitMove(ctx context.Context, code model.RoomCode, userID model.UserID, cell int) (*model.Room, error)
}

// Presence counts live connections per user
type Presence interface {
	Connect(user model.UserRef) bool
	Disconnect(userID model.UserID) bool
}

// Friends receives online transitions
type Friends interface {
	NotifyStatus(ctx context.Context, user model.UserRef, online bool) error
	SendFriendList(ctx context.Context, userID model.UserID) error
}

// Server upgrades HTTP requests into authenticated push channels
type Server struct {
	broker   *Broker
	auth     TokenValidator
	rooms    Rooms
	presence Presence
	friends  Friends
	clock    clock.Clock
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a push server
func NewServer(
	broker *Broker,
	auth TokenValidator,
	rooms Rooms,
	presence Presence,
	friends Friends,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Server {
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		broker:   broker,
		auth:     auth,
		rooms:    rooms,
		presence: presence,
		friends:  friends,
		clock:    clk,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With(slog.String("component", "push")),
	}
}

// bearerToken reads the token from the query string or the Authorization header
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// ServeHTTP runs one channel until the peer goes away
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", slog.Any("error", err))
		return
	}

	identity, err := s.auth.ValidateToken(bearerToken(r))
	if err != nil {
		s.reject(ws, err)
		return
	}

	c := newConn(ws, *identity, s.cfg, s.logger)
	user := model.UserRef{ID: identity.UserID, Username: identity.Username}
	ctx := context.WithoutCancel(r.Context())

	// The channel lives no longer than the token that opened it
	expiry := time.AfterFunc(identity.ExpiresAt.Sub(s.clock.Now()), func() {
		c.logger.Info("token expired, closing channel")
		c.terminate(websocket.ClosePolicyViolation, "token expired")
	})
	defer expiry.Stop()

	s.broker.add(c)
	if s.presence.Connect(user) {
		if err := s.friends.NotifyStatus(ctx, user, true); err != nil {
			c.logger.Error("failed to notify friends", slog.Any("error", err))
		}
	}
	c.logger.Info("channel connected")

	go c.writePump()

	c.deliverWire(model.EventConnected, wire.Connected{
		UserID:   string(identity.UserID),
		Username: identity.Username,
	})
	if err := s.friends.SendFriendList(ctx, identity.UserID); err != nil {
		c.logger.Error("failed to send friend list", slog.Any("error", err))
	}

	c.readPump(func(c *Conn, env wire.Envelope) {
		s.handle(ctx, c, env)
	})

	s.broker.remove(c)
	c.close()
	if s.presence.Disconnect(user.ID) {
		if err := s.friends.NotifyStatus(ctx, user, false); err != nil {
			c.logger.Error("failed to notify friends", slog.Any("error", err))
		}
	}
	c.logger.Info("channel disconnected", slog.Duration("duration", time.Since(c.connectedAt)))
}

// reject answers a failed handshake with auth_error and a policy-violation close
func (s *Server) reject(ws *websocket.Conn, cause error) {
	s.logger.Info("channel rejected", slog.Any("error", cause))

	deadline := time.Now().Add(s.cfg.WriteWait)
	_ = ws.SetWriteDeadline(deadline)
	if frame, err := wire.NewEnvelope(model.EventAuthError, wire.Error{Message: "Authentication failed"}); err == nil {
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"), deadline)
	_ = ws.Close()
}

func (s *Server) handle(ctx context.Context, c *Conn, env wire.Envelope) {
	switch env.Event {
	case model.CommandJoinGameRoom:
		cmd, err := wire.Decode[wire.RoomCommand](env)
		if err != nil || cmd.RoomID == "" {
			c.sendError("room_id is required")
			return
		}
		code := model.ParseRoomCode(cmd.RoomID)
		topic := model.RoomTopic(code)

		// Subscribe before reading so no update falls between the snapshot and the stream
		s.broker.Subscribe(topic, c)
		room, err := s.rooms.GetRoom(ctx, code)
		if err != nil {
			s.broker.Unsubscribe(topic, c)
			c.sendError(commandError(err))
			return
		}
		c.deliverWire(model.EventGameJoined, wire.RoomFromModel(room, c.UserID()))

	case model.CommandLeaveGameRoom:
		cmd, err := wire.Decode[wire.RoomCommand](env)
		if err != nil || cmd.RoomID == "" {
			c.sendError("room_id is required")
			return
		}
		s.broker.Unsubscribe(model.RoomTopic(model.ParseRoomCode(cmd.RoomID)), c)

	case model.CommandMakeMove:
		cmd, err := wire.Decode[wire.MoveCommand](env)
		if err != nil || cmd.RoomID == "" {
			c.sendError("room_id and index are required")
			return
		}
		code := model.ParseRoomCode(cmd.RoomID)
		if _, err := s.rooms.SubmitMove(ctx, code, c.UserID(), cmd.Index); err != nil {
			c.logger.Debug("move rejected",
				slog.String("room_code", string(code)),
				slog.Int("index", cmd.Index),
				slog.Any("error", err))
			c.sendError(commandError(err))
		}

	default:
		c.sendError("unknown event: " + string(env.Event))
	}
}

// commandError hides storage failures from the peer
func commandError(err error) string {
	for _, known := range []error{
		model.ErrRoomNotFound,
		model.ErrRoomNotActive,
		model.ErrNotYourTurn,
		model.ErrInvalidCell,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
