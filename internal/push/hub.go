package push

import (
	"log/slog"
	"sync"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// hubBufferSize bounds queued broadcasts per topic
const hubBufferSize = 256

// Hub fans events out to the connections subscribed to one topic
type Hub struct {
	topic   model.Topic
	clients map[*Conn]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	// Channels for managing clients
	register   chan *Conn
	unregister chan *Conn
	broadcast  chan model.Event
	done       chan struct{}
}

// NewHub creates a new Hub for a topic
func NewHub(topic model.Topic, logger *slog.Logger) *Hub {
	return &Hub{
		topic:      topic,
		clients:    make(map[*Conn]bool),
		logger:     logger.With(slog.String("topic", string(topic))),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		broadcast:  make(chan model.Event, hubBufferSize),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client subscribed",
				slog.String("user_id", string(client.UserID())),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed",
				slog.String("user_id", string(client.UserID())),
				slog.Int("total_clients", clientCount))

		case event := <-h.broadcast:
			h.mu.RLock()
			sentCount := 0
			droppedCount := 0
			for client := range h.clients {
				if client.Deliver(event) {
					sentCount++
				} else {
					droppedCount++
				}
			}
			h.mu.RUnlock()
			if droppedCount > 0 {
				h.logger.Warn("broadcast partial failure",
					slog.String("event", string(event.Type)),
					slog.Int("sent", sentCount),
					slog.Int("dropped", droppedCount))
			}

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			clear(h.clients)
			h.mu.Unlock()
			h.logger.Debug("hub stopped", slog.Int("released_clients", clientCount))
			return
		}
	}
}

// Register adds a client; it returns once the hub has recorded it
func (h *Hub) Register(client *Conn) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues an event for every subscribed client
func (h *Hub) Broadcast(event model.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast dropped - hub buffer full", slog.String("event", string(event.Type)))
	}
}

// Close shuts down the hub
func (h *Hub) Close() {
	close(h.done)
}

// ClientCount returns the number of subscribed clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubManager owns one hub per active topic
type HubManager struct {
	hubs   map[model.Topic]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.Topic]*Hub),
		logger: logger,
	}
}

// Subscribe registers the client with the topic's hub, creating it if needed
// Runs under the manager lock so cleanup cannot close a hub mid-registration
func (m *HubManager) Subscribe(topic model.Topic, client *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[topic]
	if !ok {
		hub = NewHub(topic, m.logger)
		m.hubs[topic] = hub
		go hub.Run()
	}
	hub.Register(client)
}

// Unsubscribe removes the client from the topic's hub if there is one
func (m *HubManager) Unsubscribe(topic model.Topic, client *Conn) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if hub, ok := m.hubs[topic]; ok {
		hub.Unregister(client)
	}
}

// GetHub returns the hub for a topic, or nil if it doesn't exist
func (m *HubManager) GetHub(topic model.Topic) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[topic]
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removedCount := 0
	for topic, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, topic)
			removedCount++
		}
	}
	if removedCount > 0 {
		m.logger.Info("empty hubs cleaned up", slog.Int("removed", removedCount))
	}
	return removedCount
}

// Close stops every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for topic, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, topic)
	}
}

// HubCount returns the number of live hubs
func (m *HubManager) HubCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}
