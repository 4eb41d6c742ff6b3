package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcoot/tictactoe-live/internal/api/middleware"
	"github.com/mcoot/tictactoe-live/internal/api/request"
	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
)

// Severer closes live channels opened with a revoked token
type Severer interface {
	Sever(tokenID string) int
}

// AuthHandler handles account and token endpoints
type AuthHandler struct {
	authService *auth.Service
	severer     Severer
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, severer Severer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		severer:     severer,
		logger:      logger,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("Username and password required"))
		return
	}

	user, err := h.authService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RegisterResponse{
		Message: "User created successfully",
		UserID:  string(user.ID),
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("Username and password required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LoginResponseFromSession(session))
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	me, err := h.authService.Me(r.Context(), user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MeFromModel(me))
}

// Scoreboard handles GET /auth/scoreboard
func (h *AuthHandler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.authService.Scoreboard(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ScoreboardFromModel(entries))
}

// Logout handles POST /auth/logout
// Channels opened with the token are closed with a policy-violation code
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authService.Revoke(middleware.GetToken(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}

	severed := h.severer.Sever(identity.TokenID)
	h.logger.Info("user logged out",
		slog.String("user_id", string(identity.UserID)),
		slog.Int("severed", severed))

	response.Ack(w, http.StatusOK, "Logged out")
}
