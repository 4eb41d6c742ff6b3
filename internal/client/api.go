// Package client talks to the tic-tac-toe server: request/response calls, the push
// channel, and local mirrors that reconcile the two.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// DefaultTimeout bounds every request/response call
const DefaultTimeout = 10 * time.Second

// API is an HTTP client for the request/response surface
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPI creates a new API client
func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetToken updates the client's token
func (c *API) SetToken(token string) {
	c.token = token
}

// Token returns the bearer token in use
func (c *API) Token() string {
	return c.token
}

// BaseURL returns the server root
func (c *API) BaseURL() string {
	return c.baseURL
}

// SetTimeout overrides the per-request timeout
func (c *API) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// Do performs an HTTP request and decodes a JSON result
func (c *API) Do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", ErrTransient, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrTransient, err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			errResp.Error.Status = resp.StatusCode
			return &errResp.Error
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: HTTP %d", ErrTransient, resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: string(respBody)}
	}

	// Parse successful response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

func (c *API) get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

func (c *API) post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Health checks that the server is up
func (c *API) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// Accounts

// Register creates an account and returns its user id
func (c *API) Register(ctx context.Context, username, password string) (string, error) {
	var resp response.RegisterResponse
	err := c.post(ctx, "/auth/register", map[string]string{"username": username, "password": password}, &resp)
	return resp.UserID, err
}

// Login exchanges credentials for a bearer token and starts using it
func (c *API) Login(ctx context.Context, username, password string) (*response.LoginResponse, error) {
	var resp response.LoginResponse
	if err := c.post(ctx, "/auth/login", map[string]string{"username": username, "password": password}, &resp); err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp, nil
}

// Logout revokes the current token
func (c *API) Logout(ctx context.Context) error {
	return c.post(ctx, "/auth/logout", nil, nil)
}

// Me returns the caller's profile
func (c *API) Me(ctx context.Context) (*response.Me, error) {
	var resp response.Me
	if err := c.get(ctx, "/auth/me", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scoreboard returns the top players by wins
func (c *API) Scoreboard(ctx context.Context) ([]response.ScoreEntry, error) {
	var resp []response.ScoreEntry
	err := c.get(ctx, "/auth/scoreboard", &resp)
	return resp, err
}

// Rooms

// CreateRoom opens a room with the caller in the X seat
func (c *API) CreateRoom(ctx context.Context, public bool) (*wire.Room, error) {
	var resp wire.RoomEnvelope
	if err := c.post(ctx, "/api/rooms", map[string]bool{"is_public": public}, &resp); err != nil {
		return nil, err
	}
	return &resp.GameDetails, nil
}

// PublicRooms lists pending public rooms
func (c *API) PublicRooms(ctx context.Context) ([]wire.Room, error) {
	var resp []wire.Room
	err := c.get(ctx, "/api/rooms/public", &resp)
	return resp, err
}

// JoinRoom takes the vacant seat, or resumes the caller's own seat
func (c *API) JoinRoom(ctx context.Context, code string) (*wire.Room, error) {
	var resp wire.RoomEnvelope
	if err := c.post(ctx, "/api/rooms/"+url.PathEscape(code)+"/join", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.GameDetails, nil
}

// GetRoom fetches a room snapshot
func (c *API) GetRoom(ctx context.Context, code string) (*wire.Room, error) {
	var resp wire.Room
	if err := c.get(ctx, "/api/game/"+url.PathEscape(code), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Move submits a move and returns the new snapshot
func (c *API) Move(ctx context.Context, code string, index int) (*wire.Room, error) {
	var resp wire.Room
	if err := c.post(ctx, "/api/game/"+url.PathEscape(code)+"/move", map[string]int{"index": index}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Roster

// SetReady puts the caller on the roster; a live channel is required
func (c *API) SetReady(ctx context.Context) error {
	return c.post(ctx, "/api/play/ready", nil, nil)
}

// SetUnready takes the caller off the roster
func (c *API) SetUnready(ctx context.Context) error {
	return c.post(ctx, "/api/play/unready", nil, nil)
}

// Available lists ready players other than the caller
func (c *API) Available(ctx context.Context) ([]wire.RosterEntry, error) {
	var resp []wire.RosterEntry
	err := c.get(ctx, "/api/play/available", &resp)
	return resp, err
}

// Challenge starts a game with a ready player
func (c *API) Challenge(ctx context.Context, userID string) (*wire.Room, error) {
	var resp wire.RoomEnvelope
	if err := c.post(ctx, "/api/play/start_with/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.GameDetails, nil
}

// Friends

// Friends lists accepted friends with their online flag
func (c *API) Friends(ctx context.Context) ([]wire.Friend, error) {
	var resp []wire.Friend
	err := c.get(ctx, "/api/friends", &resp)
	return resp, err
}

// FriendRequests lists pending requests addressed to the caller
func (c *API) FriendRequests(ctx context.Context) ([]wire.FriendRequest, error) {
	var resp []wire.FriendRequest
	err := c.get(ctx, "/api/friends/requests", &resp)
	return resp, err
}

// SendFriendRequest asks another user to be friends
func (c *API) SendFriendRequest(ctx context.Context, userID string) error {
	return c.post(ctx, "/api/friends/send_request/"+url.PathEscape(userID), nil, nil)
}

// RespondFriendRequest accepts or declines a request
func (c *API) RespondFriendRequest(ctx context.Context, requestID string, status model.FriendStatus) error {
	return c.post(ctx, "/api/friends/respond_request/"+url.PathEscape(requestID), map[string]string{"status": string(status)}, nil)
}

// SearchUsers finds users by username substring
func (c *API) SearchUsers(ctx context.Context, query string) ([]wire.UserSummary, error) {
	var resp []wire.UserSummary
	err := c.get(ctx, "/api/users/search?q="+url.QueryEscape(query), &resp)
	return resp, err
}

// ChannelURL derives the push endpoint from the server root
func (c *API) ChannelURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}
