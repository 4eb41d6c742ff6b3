package redis

import (
	"fmt"
	"strings"

	"github.com/mcoot/tictactoe-live/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "ttt"

func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// accountKey is keyed by the lower-cased username so lookups ignore case
func accountKey(username string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, strings.ToLower(username))
}

func roomKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, code)
}

func friendEdgeKey(id model.FriendRequestID) string {
	return fmt.Sprintf("%s:friend:%s", keyPrefix, id)
}

// winsIndexKey is a ZSET of user ids scored by wins
func winsIndexKey() string {
	return fmt.Sprintf("%s:idx:wins", keyPrefix)
}

// usernameIndexKey is a HASH of user id -> lower-cased username used for search
func usernameIndexKey() string {
	return fmt.Sprintf("%s:idx:usernames", keyPrefix)
}

// publicRoomsIndexKey is a ZSET of pending public room codes scored by creation time
func publicRoomsIndexKey() string {
	return fmt.Sprintf("%s:idx:public_rooms", keyPrefix)
}

// friendsOfIndexKey is a SET of edge ids touching a user
func friendsOfIndexKey(id model.UserID) string {
	return fmt.Sprintf("%s:idx:friends_of:%s", keyPrefix, id)
}

// friendPairIndexKey maps an unordered user pair to its edge id
func friendPairIndexKey(a, b model.UserID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s:idx:friend_pair:%s:%s", keyPrefix, a, b)
}
