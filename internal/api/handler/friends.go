package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tictactoe-live/internal/api/middleware"
	"github.com/mcoot/tictactoe-live/internal/api/request"
	"github.com/mcoot/tictactoe-live/internal/api/response"
	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/friends"
	"github.com/mcoot/tictactoe-live/internal/wire"
)

// FriendsHandler handles friend edges and user search
type FriendsHandler struct {
	friendsService *friends.Service
}

// NewFriendsHandler creates a new friends handler
func NewFriendsHandler(friendsService *friends.Service) *FriendsHandler {
	return &FriendsHandler{
		friendsService: friendsService,
	}
}

// List handles GET /api/friends
func (h *FriendsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	list, err := h.friendsService.ListFriends(r.Context(), user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, wire.FriendsFromModel(list))
}

// Requests handles GET /api/friends/requests
func (h *FriendsHandler) Requests(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	pending, err := h.friendsService.PendingRequests(r.Context(), user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, wire.FriendRequestsFromModel(pending))
}

// Send handles POST /api/friends/send_request/{id}
func (h *FriendsHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	addresseeID := model.UserID(mux.Vars(r)["id"])

	if _, err := h.friendsService.SendRequest(r.Context(), user, addresseeID); err != nil {
		WriteError(w, err)
		return
	}

	response.Ack(w, http.StatusCreated, "Friend request sent")
}

// Respond handles POST /api/friends/respond_request/{id}
func (h *FriendsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	requestID := model.FriendRequestID(mux.Vars(r)["id"])

	var req request.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	edge, err := h.friendsService.Respond(r.Context(), user, requestID, model.FriendStatus(req.Status))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Ack(w, http.StatusOK, "Friend request "+string(edge.Status))
}

// Search handles GET /api/users/search?q=
func (h *FriendsHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	found, err := h.friendsService.SearchUsers(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UsersFromModel(found))
}
