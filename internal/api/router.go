package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mcoot/tictactoe-live/internal/api/handler"
	"github.com/mcoot/tictactoe-live/internal/api/middleware"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
	"github.com/mcoot/tictactoe-live/internal/services/friends"
	"github.com/mcoot/tictactoe-live/internal/services/presence"
	"github.com/mcoot/tictactoe-live/internal/services/room"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	RoomController *room.Controller
	Presence       *presence.Registry
	FriendsService *friends.Service

	// Push serves the websocket channel at /ws
	Push http.Handler
	// Severer closes channels when their token is revoked
	Severer handler.Severer

	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Severer, cfg.Logger)
	roomHandler := handler.NewRoomHandler(cfg.RoomController)
	playHandler := handler.NewPlayHandler(cfg.Presence)
	friendsHandler := handler.NewFriendsHandler(cfg.FriendsService)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Account routes (register, login and scoreboard are public)
	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/scoreboard", authHandler.Scoreboard).Methods(http.MethodGet)

	authProtected := r.PathPrefix("/auth").Subrouter()
	authProtected.Use(authMiddleware)
	authProtected.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	authProtected.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)

	// Everything under /api requires a token
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)

	// Room routes
	api.HandleFunc("/rooms", roomHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/rooms/public", roomHandler.ListPublic).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{code}/join", roomHandler.Join).Methods(http.MethodPost)
	api.HandleFunc("/game/{code}", roomHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/game/{code}/move", roomHandler.Move).Methods(http.MethodPost)

	// Roster routes
	api.HandleFunc("/play/ready", playHandler.Ready).Methods(http.MethodPost)
	api.HandleFunc("/play/unready", playHandler.Unready).Methods(http.MethodPost)
	api.HandleFunc("/play/available", playHandler.Available).Methods(http.MethodGet)
	api.HandleFunc("/play/start_with/{id}", playHandler.Challenge).Methods(http.MethodPost)

	// Friend routes
	api.HandleFunc("/friends", friendsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/friends/requests", friendsHandler.Requests).Methods(http.MethodGet)
	api.HandleFunc("/friends/send_request/{id}", friendsHandler.Send).Methods(http.MethodPost)
	api.HandleFunc("/friends/respond_request/{id}", friendsHandler.Respond).Methods(http.MethodPost)
	api.HandleFunc("/users/search", friendsHandler.Search).Methods(http.MethodGet)

	// Push channel authenticates its own handshake
	if cfg.Push != nil {
		r.Handle("/ws", cfg.Push).Methods(http.MethodGet)
	}

	// Health check endpoint (no auth)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
