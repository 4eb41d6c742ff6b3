// Package events decouples services from the push transport.
package events

import "github.com/mcoot/tictactoe-live/internal/model"

// Publisher delivers events to live connections
// Implementations must not block on slow receivers
type Publisher interface {
	// PublishToTopic delivers to every connection subscribed to the topic
	PublishToTopic(topic model.Topic, event model.Event)

	// PublishToUser delivers to every connection authenticated as the user
	PublishToUser(userID model.UserID, event model.Event)
}

// Discard drops every event
type Discard struct{}

var _ Publisher = Discard{}

func (Discard) PublishToTopic(model.Topic, model.Event) {}

func (Discard) PublishToUser(model.UserID, model.Event) {}
