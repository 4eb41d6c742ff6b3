package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tictactoe-live/internal/api/middleware"
	"github.com/mcoot/tictactoe-live/internal/api/request"
	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/room"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// RoomHandler handles room and game endpoints
type RoomHandler struct {
	roomController *room.Controller
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomController *room.Controller) *RoomHandler {
	return &RoomHandler{
		roomController: roomController,
	}
}

// Create handles POST /api/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.CreateRoomRequest
	// An empty body creates a private room
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	created, err := h.roomController.CreateRoom(r.Context(), user, req.IsPublic)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, wire.RoomEnvelope{
		Message:     "Room created",
		GameDetails: wire.RoomFromModel(created, user.ID),
	})
}

// ListPublic handles GET /api/rooms/public
func (h *RoomHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	rooms, err := h.roomController.ListPublicRooms(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, wire.RoomsFromModel(rooms, user.ID))
}

// Join handles POST /api/rooms/{code}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	code := model.ParseRoomCode(mux.Vars(r)["code"])

	joined, err := h.roomController.JoinRoom(r.Context(), code, user)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, wire.RoomEnvelope{
		Message:     "Joined room",
		GameDetails: wire.RoomFromModel(joined, user.ID),
	})
}

// Get handles GET /api/game/{code}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	code := model.ParseRoomCode(mux.Vars(r)["code"])

	found, err := h.roomController.GetRoom(r.Context(), code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, wire.RoomFromModel(found, user.ID))
}

// Move handles POST /api/game/{code}/move
func (h *RoomHandler) Move(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	code := model.ParseRoomCode(mux.Vars(r)["code"])

	var req request.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Index == nil {
		WriteError(w, NewInvalidRequestError("index is required"))
		return
	}

	updated, err := h.roomController.SubmitMove(r.Context(), code, user.ID, *req.Index)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, wire.RoomFromModel(updated, user.ID))
}
