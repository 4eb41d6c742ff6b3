// Package config reads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mcoot/tictactoe-live/internal/api"
	"github.com/mcoot/tictactoe-live/internal/dependencies/random"
	"github.com/mcoot/tictactoe-live/internal/factory"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	redisstorage "github.com/mcoot/tictactoe-live/internal/storage/redis"
)

// devSecretBytes is the length of a generated signing secret
const devSecretBytes = 32

// Config is everything cmd/server needs to start
type Config struct {
	Server         api.ServerConfig
	App            factory.Config
	AllowedOrigins []string
	LogLevel       slog.Level

	// GeneratedSecret is set when JWT_SECRET was absent and a throwaway secret was generated
	GeneratedSecret bool
}

// Load reads .env files (missing ones are skipped) and then the process environment
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return Parse(os.Getenv)
}

// Parse builds a Config from a lookup function; unset keys read as ""
func Parse(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Server:         api.DefaultServerConfig(),
		AllowedOrigins: []string{"*"},
		LogLevel:       slog.LevelInfo,
	}
	cfg.Server.Host = getenv("HOST")

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Server.Port = port
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	cfg.App.StorageType = getenv("STORAGE_TYPE")
	switch cfg.App.StorageType {
	case "", factory.StorageTypeMemory:
		cfg.App.StorageType = factory.StorageTypeMemory
	case factory.StorageTypeRedis:
		redisURL := getenv("REDIS_URL")
		if redisURL == "" {
			return nil, errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		if v := getenv("PENDING_ROOM_TTL"); v != "" {
			ttl, err := time.ParseDuration(v)
			if err != nil || ttl < 0 {
				return nil, fmt.Errorf("invalid PENDING_ROOM_TTL %q", v)
			}
			redisCfg.PendingRoomTTL = ttl
		}
		cfg.App.RedisConfig = &redisCfg
	default:
		return nil, fmt.Errorf("invalid STORAGE_TYPE %q: must be 'memory' or 'redis'", cfg.App.StorageType)
	}

	cfg.App.AuthConfig = auth.DefaultConfig()
	if v := getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q", v)
		}
		cfg.App.AuthConfig.TokenDuration = ttl
	}

	switch secret := getenv("JWT_SECRET"); {
	case secret != "":
		cfg.App.AuthConfig.Secret = []byte(secret)
	case cfg.App.StorageType == factory.StorageTypeMemory:
		// Tokens die with the process anyway
		cfg.App.AuthConfig.Secret = random.New().Bytes(devSecretBytes)
		cfg.GeneratedSecret = true
	default:
		return nil, errors.New("JWT_SECRET required when STORAGE_TYPE=redis")
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
