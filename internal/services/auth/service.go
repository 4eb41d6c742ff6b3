package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tictactoe-live/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameExists     = errors.New("username already exists")
)

// ScoreboardSize is the number of entries on the public scoreboard
const ScoreboardSize = 10

// Session is an issued bearer token
type Session struct {
	Token     string
	TokenID   string
	UserID    model.UserID
	Username  string
	ExpiresAt time.Time
}

// Identity is what a validated token proves
type Identity struct {
	UserID    model.UserID
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles accounts and bearer tokens
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config

	mu      sync.RWMutex
	revoked map[string]time.Time // token id -> token expiry
}

// Config holds configuration for the auth service
type Config struct {
	// Secret signs tokens with HS256
	Secret []byte
	// TokenDuration is how long an issued token stays valid
	TokenDuration time.Duration
	// Issuer is stamped into and required on every token
	Issuer string
	// BcryptCost is the password hashing cost
	BcryptCost int
}

// DefaultConfig returns default auth configuration
// Secret is left empty and must be supplied
func DefaultConfig() Config {
	return Config{
		TokenDuration: 24 * time.Hour,
		Issuer:        "tictactoe-live",
		BcryptCost:    bcrypt.DefaultCost,
	}
}

// New creates a new auth service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = defaults.TokenDuration
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaults.Issuer
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "auth")),
		cfg:     cfg,
		revoked: make(map[string]time.Time),
	}
}

// Register creates an account; usernames are unique ignoring case
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)

	_, err := s.storage.GetAccountByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		ID:        model.UserID(uuid.NewString()),
		Username:  username,
		CreatedAt: now,
	}
	account := &model.Account{
		UserID:       user.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.storage.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", string(user.ID)),
		slog.String("username", username),
	)
	return user, nil
}

// Login checks credentials and issues a token
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	account, err := s.storage.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(account.UserID, account.Username)
}

func (s *Service) issue(userID model.UserID, username string) (*Session, error) {
	now := s.clock.Now()
	expires := now.Add(s.cfg.TokenDuration)
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   string(userID),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{
		Token:     signed,
		TokenID:   tokenID,
		UserID:    userID,
		Username:  username,
		ExpiresAt: expires,
	}, nil
}

// ValidateToken verifies signature, issuer, expiry and revocation
func (s *Service) ValidateToken(token string) (*Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || c.Subject == "" || c.ID == "" {
		return nil, ErrInvalidToken
	}

	s.mu.RLock()
	_, revoked := s.revoked[c.ID]
	s.mu.RUnlock()
	if revoked {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:    model.UserID(c.Subject),
		Username:  c.Username,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates a token before its expiry and returns the identity it carried
func (s *Service) Revoke(token string) (*Identity, error) {
	identity, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.revoked[identity.TokenID] = identity.ExpiresAt
	s.mu.Unlock()

	s.logger.Info("token revoked",
		slog.String("user_id", string(identity.UserID)),
		slog.String("token_id", identity.TokenID),
	)
	return identity, nil
}

// CleanExpiredRevocations forgets revoked ids whose tokens have expired anyway (call periodically)
func (s *Service) CleanExpiredRevocations() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expires := range s.revoked {
		if now.After(expires) {
			delete(s.revoked, id)
		}
	}
}

// Me returns the current profile including wins
func (s *Service) Me(ctx context.Context, userID model.UserID) (*model.User, error) {
	return s.storage.GetUser(ctx, userID)
}

// Scoreboard returns the top users by wins
func (s *Service) Scoreboard(ctx context.Context) ([]model.ScoreEntry, error) {
	users, err := s.storage.TopUsersByWins(ctx, ScoreboardSize)
	if err != nil {
		return nil, err
	}
	entries := make([]model.ScoreEntry, len(users))
	for i, u := range users {
		entries[i] = model.ScoreEntry{Username: u.Username, Wins: u.Wins}
	}
	return entries, nil
}
