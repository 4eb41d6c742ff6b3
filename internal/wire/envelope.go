package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// Envelope is every frame on the push channel, in both directions
type Envelope struct {
	ID    string          `json:"id,omitempty"`
	Event model.EventType `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a frame with a fresh id
func NewEnvelope(event model.EventType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{ID: uuid.NewString(), Event: event, Data: raw})
}

// Encode renders a domain event for one recipient
// Room snapshots carry the recipient's own seat so the same event encodes differently per viewer
func Encode(e model.Event, viewer model.UserID) ([]byte, error) {
	return NewEnvelope(e.Type, payload(e.Payload, viewer))
}

func payload(p any, viewer model.UserID) any {
	switch p := p.(type) {
	case *model.Room:
		return RoomFromModel(p, viewer)
	case model.GameOverPayload:
		out := GameOver{Game: RoomFromModel(p.Room, viewer), Draw: p.Draw}
		if !p.Draw {
			out.Winner = string(p.Winner)
		}
		return out
	case model.PlayerJoinedPayload:
		return PlayerJoined{Game: RoomFromModel(p.Room, viewer), JoiningPlayerUsername: p.JoiningPlayerUsername}
	case model.DirectStartPayload:
		return RoomEnvelope{Message: p.Message, GameDetails: RoomFromModel(p.Room, p.Viewer)}
	case model.RosterPayload:
		return RosterFromModel(p.Entries)
	case model.FriendListPayload:
		return FriendsFromModel(p.Friends)
	case model.FriendStatusPayload:
		return FriendStatus{UserID: string(p.UserID), Username: p.Username, Online: p.Online}
	case model.FriendRequestReceivedPayload:
		return FriendRequest{
			RequestID:         string(p.RequestID),
			RequesterID:       string(p.RequesterID),
			RequesterUsername: p.RequesterUsername,
		}
	case model.FriendRequestRespondedPayload:
		return FriendRequestResponded{
			RequestID:         string(p.RequestID),
			AddresseeID:       string(p.AddresseeID),
			AddresseeUsername: p.AddresseeUsername,
			Status:            string(p.Status),
		}
	case model.ErrorPayload:
		return Error{Message: p.Message}
	default:
		return p
	}
}

// Decode parses a frame and its payload in one step
func Decode[T any](env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%s frame has no data", env.Event)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return v, nil
}
