package mocks

import (
	"sync"

	"github.com/mcoot/tictactoe-live/internal/events"
	"github.com/mcoot/tictactoe-live/internal/model"
)

// Published is one recorded delivery
// Exactly one of Topic and UserID is set
type Published struct {
	Topic  model.Topic
	UserID model.UserID
	Event  model.Event
}

// Publisher records every event for later assertions
type Publisher struct {
	mu     sync.Mutex
	events []Published
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher creates an empty recording publisher
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishToTopic(topic model.Topic, event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{Topic: topic, Event: event})
}

func (p *Publisher) PublishToUser(userID model.UserID, event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{UserID: userID, Event: event})
}

// All returns a copy of everything recorded so far
func (p *Publisher) All() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.events))
	copy(out, p.events)
	return out
}

// ToUser returns events delivered to the user, optionally filtered by type
func (p *Publisher) ToUser(userID model.UserID, types ...model.EventType) []model.Event {
	var out []model.Event
	for _, e := range p.All() {
		if e.UserID == userID && matches(e.Event.Type, types) {
			out = append(out, e.Event)
		}
	}
	return out
}

// ToTopic returns events delivered to the topic, optionally filtered by type
func (p *Publisher) ToTopic(topic model.Topic, types ...model.EventType) []model.Event {
	var out []model.Event
	for _, e := range p.All() {
		if e.Topic == topic && matches(e.Event.Type, types) {
			out = append(out, e.Event)
		}
	}
	return out
}

// Reset forgets everything recorded
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func matches(t model.EventType, types []model.EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}
