package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func getJSON[T any](ctx context.Context, c *redis.Client, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// mgetJSON fetches many keys at once, skipping expired or corrupt entries
func mgetJSON[T any](ctx context.Context, c *redis.Client, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return []*T{}, nil
	}

	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}

// User operations

// Wins live in the wins index; the stored JSON copy is refreshed on read
func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKey(user.ID), data, 0)
	pipe.ZAdd(ctx, winsIndexKey(), redis.Z{Score: float64(user.Wins), Member: string(user.ID)})
	pipe.HSet(ctx, usernameIndexKey(), string(user.ID), strings.ToLower(user.Username))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	user, err := getJSON[model.User](ctx, s.client, userKey(id), model.ErrUserNotFound)
	if err != nil {
		return nil, err
	}

	wins, err := s.client.ZScore(ctx, winsIndexKey(), string(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	user.Wins = int(wins)
	return user, nil
}

func (s *Storage) IncrementWins(ctx context.Context, id model.UserID) error {
	exists, err := s.client.Exists(ctx, userKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrUserNotFound
	}
	return s.client.ZIncrBy(ctx, winsIndexKey(), 1, string(id)).Err()
}

func (s *Storage) TopUsersByWins(ctx context.Context, limit int) ([]*model.User, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ranked, err := s.client.ZRevRangeWithScores(ctx, winsIndexKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(ranked))
	wins := make(map[model.UserID]int, len(ranked))
	for i, z := range ranked {
		id := model.UserID(z.Member.(string))
		keys[i] = userKey(id)
		wins[id] = int(z.Score)
	}

	users, err := mgetJSON[model.User](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.Wins = wins[u.ID]
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Wins != users[j].Wins {
			return users[i].Wins > users[j].Wins
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (s *Storage) SearchUsers(ctx context.Context, query string, exclude model.UserID, limit int) ([]*model.User, error) {
	names, err := s.client.HGetAll(ctx, usernameIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var keys []string
	for id, name := range names {
		if model.UserID(id) == exclude || !strings.Contains(name, q) {
			continue
		}
		keys = append(keys, userKey(model.UserID(id)))
	}

	users, err := mgetJSON[model.User](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, accountKey(account.Username), data, 0).Err()
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return getJSON[model.Account](ctx, s.client, accountKey(username), model.ErrUserNotFound)
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	// Only a room nobody joined may expire; saving it once started clears the expiry
	var ttl time.Duration
	if room.Status == model.RoomStatusPending {
		ttl = s.cfg.PendingRoomTTL
	}

	// Keep the public listing index in step with the room record
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, roomKey(room.Code), data, ttl)
	if room.IsPublic && room.Status == model.RoomStatusPending {
		pipe.ZAdd(ctx, publicRoomsIndexKey(), redis.Z{
			Score:  float64(room.CreatedAt.UnixNano()),
			Member: string(room.Code),
		})
	} else {
		pipe.ZRem(ctx, publicRoomsIndexKey(), string(room.Code))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return getJSON[model.Room](ctx, s.client, roomKey(code), model.ErrRoomNotFound)
}

func (s *Storage) RoomExists(ctx context.Context, code model.RoomCode) (bool, error) {
	exists, err := s.client.Exists(ctx, roomKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) ListPublicPendingRooms(ctx context.Context) ([]*model.Room, error) {
	codes, err := s.client.ZRevRange(ctx, publicRoomsIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = roomKey(model.RoomCode(code))
	}

	rooms, err := mgetJSON[model.Room](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}

	// Entries can outlive their room when it expires
	listed := rooms[:0]
	for _, r := range rooms {
		if r.IsPublic && r.Status == model.RoomStatusPending {
			listed = append(listed, r)
		}
	}
	return listed, nil
}

// Friend edge operations

func (s *Storage) SaveFriendEdge(ctx context.Context, edge *model.FriendEdge) error {
	data, err := json.Marshal(edge)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, friendEdgeKey(edge.ID), data, 0)
	pipe.Set(ctx, friendPairIndexKey(edge.RequesterID, edge.AddresseeID), string(edge.ID), 0)
	pipe.SAdd(ctx, friendsOfIndexKey(edge.RequesterID), string(edge.ID))
	pipe.SAdd(ctx, friendsOfIndexKey(edge.AddresseeID), string(edge.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetFriendEdge(ctx context.Context, id model.FriendRequestID) (*model.FriendEdge, error) {
	return getJSON[model.FriendEdge](ctx, s.client, friendEdgeKey(id), model.ErrRequestNotFound)
}

func (s *Storage) FindFriendEdge(ctx context.Context, a, b model.UserID) (*model.FriendEdge, error) {
	id, err := s.client.Get(ctx, friendPairIndexKey(a, b)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRequestNotFound
		}
		return nil, err
	}
	return s.GetFriendEdge(ctx, model.FriendRequestID(id))
}

func (s *Storage) DeleteFriendEdge(ctx context.Context, id model.FriendRequestID) error {
	edge, err := s.GetFriendEdge(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrRequestNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, friendEdgeKey(id))
	pipe.Del(ctx, friendPairIndexKey(edge.RequesterID, edge.AddresseeID))
	pipe.SRem(ctx, friendsOfIndexKey(edge.RequesterID), string(id))
	pipe.SRem(ctx, friendsOfIndexKey(edge.AddresseeID), string(id))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListFriendEdges(ctx context.Context, userID model.UserID) ([]*model.FriendEdge, error) {
	ids, err := s.client.SMembers(ctx, friendsOfIndexKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = friendEdgeKey(model.FriendRequestID(id))
	}

	edges, err := mgetJSON[model.FriendEdge](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].CreatedAt.Before(edges[j].CreatedAt) })
	return edges, nil
}
