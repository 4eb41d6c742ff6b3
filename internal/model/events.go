package model

// EventType names a push event on the wire
type EventType string

const (
	// Connection events
	EventConnected EventType = "connected"
	EventAuthError EventType = "auth_error"
	EventError     EventType = "error"

	// Room topic
	EventGameUpdate      EventType = "game_update"
	EventGameOver        EventType = "game_over"
	EventGameJoined      EventType = "game_joined_successfully"
	EventPlayerJoined    EventType = "player_joined"
	CommandJoinGameRoom  EventType = "join_game_room"
	CommandLeaveGameRoom EventType = "leave_game_room"
	CommandMakeMove      EventType = "make_move"

	// Roster topic
	EventAvailablePlayers  EventType = "available_players_update"
	EventGameInvite        EventType = "game_invite"
	EventGameStartedDirect EventType = "game_started_direct"

	// Friend feed topic
	EventFriendStatus           EventType = "friend_status_update"
	EventFriendRequestReceived  EventType = "friend_request_received"
	EventFriendRequestResponded EventType = "friend_request_responded"
	EventFriendListUpdate       EventType = "friend_list_update"
)

// Topic names a push subscription scope
type Topic string

// RoomTopic returns the topic for a room's subscribers
func RoomTopic(code RoomCode) Topic {
	return Topic("room:" + string(code))
}

// Event is a push event before wire encoding
type Event struct {
	Type    EventType
	Payload any
}

// GameOverPayload reports a terminal transition
// Exactly one of Winner and Draw is set
type GameOverPayload struct {
	Room   *Room
	Winner Mark
	Draw   bool
}

// PlayerJoinedPayload tells the first mover that the second seat filled
type PlayerJoinedPayload struct {
	Room                  *Room
	JoiningPlayerUsername string
}

// DirectStartPayload carries a room created by a challenge
type DirectStartPayload struct {
	Message string
	Room    *Room
	Viewer  UserID
}

// RosterPayload is the full ready roster as seen by one recipient
type RosterPayload struct {
	Entries []RosterEntry
}

// FriendStatusPayload reports a friend going online or offline
type FriendStatusPayload struct {
	UserID   UserID
	Username string
	Online   bool
}

// FriendRequestReceivedPayload notifies an addressee of a new request
type FriendRequestReceivedPayload struct {
	RequestID         FriendRequestID
	RequesterID       UserID
	RequesterUsername string
}

// FriendRequestRespondedPayload notifies a requester of the outcome
type FriendRequestRespondedPayload struct {
	RequestID         FriendRequestID
	AddresseeID       UserID
	AddresseeUsername string
	Status            FriendStatus
}

// FriendListPayload is a user's full friend list
type FriendListPayload struct {
	Friends []Friend
}

// ErrorPayload answers a rejected channel command
type ErrorPayload struct {
	Message string
}
