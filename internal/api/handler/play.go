package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tictactoe-live/internal/api/middleware"
	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/presence"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// PlayHandler handles the ready roster and direct challenges
type PlayHandler struct {
	registry *presence.Registry
}

// NewPlayHandler creates a new play handler
func NewPlayHandler(registry *presence.Registry) *PlayHandler {
	return &PlayHandler{
		registry: registry,
	}
}

// Ready handles POST /api/play/ready
func (h *PlayHandler) Ready(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	if err := h.registry.SetReady(user.Ref()); err != nil {
		WriteError(w, err)
		return
	}

	response.Ack(w, http.StatusOK, "You are now available to play")
}

// Unready handles POST /api/play/unready
func (h *PlayHandler) Unready(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	h.registry.SetUnready(user.ID)

	response.Ack(w, http.StatusOK, "You are no longer available to play")
}

// Available handles GET /api/play/available
func (h *PlayHandler) Available(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	response.JSON(w, http.StatusOK, wire.RosterFromModel(h.registry.Available(user.ID)))
}

// Challenge handles POST /api/play/start_with/{id}
func (h *PlayHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	targetID := model.UserID(mux.Vars(r)["id"])

	created, err := h.registry.Challenge(r.Context(), user, targetID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, wire.RoomEnvelope{
		Message:     "Game started",
		GameDetails: wire.RoomFromModel(created, user.ID),
	})
}
