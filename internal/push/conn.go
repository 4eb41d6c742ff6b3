package push

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// Conn is one authenticated push channel
// It owns its outbound queue; hubs and the user index only hold references
type Conn struct {
	ws       *websocket.Conn
	identity auth.Identity
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
	topics map[model.Topic]struct{}

	connectedAt time.Time
}

func newConn(ws *websocket.Conn, identity auth.Identity, cfg Config, logger *slog.Logger) *Conn {
	return &Conn{
		ws:       ws,
		identity: identity,
		cfg:      cfg,
		logger: logger.With(
			slog.String("user_id", string(identity.UserID)),
			slog.String("remote_addr", ws.RemoteAddr().String()),
		),
		send:        make(chan []byte, cfg.SendBuffer),
		topics:      make(map[model.Topic]struct{}),
		connectedAt: time.Now(),
	}
}

// UserID returns the authenticated user
func (c *Conn) UserID() model.UserID {
	return c.identity.UserID
}

// Deliver encodes the event for this connection's user and queues it
// It reports false when the connection is closed or its buffer is full
func (c *Conn) Deliver(event model.Event) bool {
	frame, err := wire.Encode(event, c.identity.UserID)
	if err != nil {
		c.logger.Error("failed to encode event", slog.String("event", string(event.Type)), slog.Any("error", err))
		return false
	}
	return c.enqueue(frame, event.Type)
}

func (c *Conn) deliverWire(event model.EventType, data any) bool {
	frame, err := wire.NewEnvelope(event, data)
	if err != nil {
		c.logger.Error("failed to encode frame", slog.String("event", string(event)), slog.Any("error", err))
		return false
	}
	return c.enqueue(frame, event)
}

func (c *Conn) sendError(message string) {
	c.deliverWire(model.EventError, wire.Error{Message: message})
}

func (c *Conn) enqueue(frame []byte, event model.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn("message dropped - client buffer full", slog.String("event", string(event)))
		return false
	}
}

func (c *Conn) addTopic(topic model.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; ok {
		return false
	}
	c.topics[topic] = struct{}{}
	return true
}

func (c *Conn) removeTopic(topic model.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; !ok {
		return false
	}
	delete(c.topics, topic)
	return true
}

func (c *Conn) drainTopics() []model.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]model.Topic, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	clear(c.topics)
	return topics
}

// close stops the write pump, which sends a close frame and drops the socket
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// terminate closes the socket with an explicit status code
// WriteControl is safe to call alongside the write pump
func (c *Conn) terminate(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.logger.Debug("close frame not sent", slog.Any("error", err))
	}
	_ = c.ws.Close()
}

// readPump decodes client frames until the socket fails
func (c *Conn) readPump(handle func(*Conn, wire.Envelope)) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Info("connection lost", slog.Any("error", err))
			}
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.sendError("malformed frame")
			continue
		}
		handle(c, env)
	}
}

// writePump is the only writer of data frames
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
