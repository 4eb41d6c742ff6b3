package factory

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/tictactoe-live/internal/api"
	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/dependencies/random"
	"github.com/mcoot/tictactoe-live/internal/push"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/services/friends"
	"github.com/mcoot/tictactoe-live/internal/services/presence"
	"github.com/mcoot/tictactoe-live/internal/services/room"
	"github.com/mcoot/tictactoe-live/internal/storage"
	"github.com/mcoot/tictactoe-live/internal/storage/memory"
	redisstorage "github.com/mcoot/tictactoe-live/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService    *auth.Service
	RoomController *room.Controller
	Presence       *presence.Registry
	FriendsService *friends.Service

	// Push channel
	Broker     *push.Broker
	PushServer *push.Server

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service
	// Secret is required; other zero fields fall back to auth.DefaultConfig()
	AuthConfig auth.Config
	// PushConfig holds channel timings (optional)
	// If zero value, defaults to push.DefaultConfig()
	PushConfig push.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if len(cfg.AuthConfig.Secret) == 0 {
		return nil, errors.New("AuthConfig.Secret is required")
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	return newWithDependencies(store, clock.New(), random.New(), withAuthDefaults(cfg.AuthConfig), withPushDefaults(cfg.PushConfig), logger), nil
}

func withAuthDefaults(cfg auth.Config) auth.Config {
	defaults := auth.DefaultConfig()
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = defaults.TokenDuration
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaults.Issuer
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	return cfg
}

func withPushDefaults(cfg push.Config) push.Config {
	if cfg.PingPeriod == 0 {
		checkOrigin := cfg.CheckOrigin
		cfg = push.DefaultConfig()
		cfg.CheckOrigin = checkOrigin
	}
	return cfg
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
// The broker is built first because every service publishes through it
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	pushCfg push.Config,
	logger *slog.Logger,
) *App {
	broker := push.NewBroker(logger)

	authService := auth.New(store, clk, authCfg, logger)
	roomController := room.NewController(store, broker, clk, rnd, logger)
	registry := presence.NewRegistry(roomController, store, broker, logger)
	friendsService := friends.New(store, registry, broker, clk, logger)
	pushServer := push.NewServer(broker, authService, roomController, registry, friendsService, clk, pushCfg, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		AuthService:    authService,
		RoomController: roomController,
		Presence:       registry,
		FriendsService: friendsService,
		Broker:         broker,
		PushServer:     pushServer,
		logger:         logger,
	}
}

// Handler builds the full HTTP surface, including the push channel at /ws
func (a *App) Handler(allowedOrigins []string) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:         a.logger,
		AuthService:    a.AuthService,
		RoomController: a.RoomController,
		Presence:       a.Presence,
		FriendsService: a.FriendsService,
		Push:           a.PushServer,
		Severer:        a.Broker,
		AllowedOrigins: allowedOrigins,
	})
}

// Close drops live channels and releases storage
func (a *App) Close() error {
	a.Broker.Close()
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
