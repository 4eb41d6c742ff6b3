package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-live/internal/events"
	"github.com/mcoot/tictactoe-live/internal/model"
)

// Broker routes events to live connections by topic or by user
type Broker struct {
	hubs   *HubManager
	logger *slog.Logger

	mu    sync.RWMutex
	users map[model.UserID]map[*Conn]struct{}
}

var _ events.Publisher = (*Broker)(nil)

// NewBroker creates an empty broker
func NewBroker(logger *slog.Logger) *Broker {
	logger = logger.With(slog.String("component", "push"))
	return &Broker{
		hubs:   NewHubManager(logger),
		logger: logger,
		users:  make(map[model.UserID]map[*Conn]struct{}),
	}
}

// PublishToTopic queues the event on the topic's hub; topics nobody joined are skipped
func (b *Broker) PublishToTopic(topic model.Topic, event model.Event) {
	if hub := b.hubs.GetHub(topic); hub != nil {
		hub.Broadcast(event)
	}
}

// PublishToUser delivers to every connection of the user
func (b *Broker) PublishToUser(userID model.UserID, event model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.users[userID] {
		c.Deliver(event)
	}
}

// Subscribe joins the connection to a topic; idempotent
func (b *Broker) Subscribe(topic model.Topic, c *Conn) {
	if c.addTopic(topic) {
		b.hubs.Subscribe(topic, c)
	}
}

// Unsubscribe leaves a topic; idempotent
func (b *Broker) Unsubscribe(topic model.Topic, c *Conn) {
	if c.removeTopic(topic) {
		b.hubs.Unsubscribe(topic, c)
	}
}

func (b *Broker) add(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conns, ok := b.users[c.UserID()]
	if !ok {
		conns = make(map[*Conn]struct{})
		b.users[c.UserID()] = conns
	}
	conns[c] = struct{}{}
}

// remove releases every topic the connection held and drops it from the user index
func (b *Broker) remove(c *Conn) {
	for _, topic := range c.drainTopics() {
		b.hubs.Unsubscribe(topic, c)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if conns, ok := b.users[c.UserID()]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(b.users, c.UserID())
		}
	}
}

// Sever closes every connection authenticated with the token id using a policy-violation code
// Clients treat that code as final and do not reconnect
func (b *Broker) Sever(tokenID string) int {
	b.mu.RLock()
	var targets []*Conn
	for _, conns := range b.users {
		for c := range conns {
			if c.identity.TokenID == tokenID {
				targets = append(targets, c)
			}
		}
	}
	b.mu.RUnlock()

	for _, c := range targets {
		c.terminate(websocket.ClosePolicyViolation, "token revoked")
	}
	if len(targets) > 0 {
		b.logger.Info("connections severed", slog.String("token_id", tokenID), slog.Int("count", len(targets)))
	}
	return len(targets)
}

// ConnectionCount returns the number of live connections for a user
func (b *Broker) ConnectionCount(userID model.UserID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.users[userID])
}

// RunCleanup removes empty topic hubs on every tick until ctx is done
func (b *Broker) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := b.hubs.CleanupEmptyHubs(); removed > 0 {
				b.logger.Debug("room hubs swept",
					slog.Int("removed", removed),
					slog.Int("live", b.hubs.HubCount()))
			}
		}
	}
}

// Close tells every connection the server is going away and stops all hubs
func (b *Broker) Close() {
	b.mu.RLock()
	var all []*Conn
	for _, conns := range b.users {
		for c := range conns {
			all = append(all, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range all {
		c.terminate(websocket.CloseGoingAway, "server shutting down")
	}
	b.hubs.Close()
}
