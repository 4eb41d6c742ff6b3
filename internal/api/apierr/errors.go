package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeUsernameExists        = "USERNAME_EXISTS"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeRoomNotFound          = "ROOM_NOT_FOUND"
	CodeRoomFull              = "ROOM_FULL"
	CodeAlreadyFinished       = "ALREADY_FINISHED"
	CodeNotYourTurn           = "NOT_YOUR_TURN"
	CodeInvalidCell           = "INVALID_CELL"
	CodeRoomNotActive         = "ROOM_NOT_ACTIVE"
	CodeTargetNotReady        = "TARGET_NOT_READY"
	CodeTargetBusy            = "TARGET_BUSY"
	CodeCannotChallengeSelf   = "CANNOT_CHALLENGE_SELF"
	CodeNotConnected          = "NOT_CONNECTED"
	CodeAlreadyFriends        = "ALREADY_FRIENDS"
	CodeRequestAlreadyPending = "REQUEST_ALREADY_PENDING"
	CodeCannotFriendSelf      = "CANNOT_FRIEND_SELF"
	CodeRequestNotFound       = "REQUEST_NOT_FOUND"
	CodeNotAddressee          = "NOT_ADDRESSEE"
	CodeRequestNotPending     = "REQUEST_NOT_PENDING"
	CodeInvalidResponse       = "INVALID_RESPONSE"
	CodeInternalError         = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// IsInternal reports whether the error maps to a 500
func IsInternal(err error) bool {
	return toHTTPError(err).status == http.StatusInternalServerError
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Not found
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrRoomNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}}
	case errors.Is(err, model.ErrRequestNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRequestNotFound, "Friend request not found"}}

	// Forbidden
	case errors.Is(err, model.ErrRoomFull):
		return &httpError{http.StatusForbidden, APIError{CodeRoomFull, "Room is full"}}
	case errors.Is(err, model.ErrAlreadyFinished):
		return &httpError{http.StatusForbidden, APIError{CodeAlreadyFinished, "Game has already finished"}}
	case errors.Is(err, model.ErrNotYourTurn):
		return &httpError{http.StatusForbidden, APIError{CodeNotYourTurn, "Not your turn"}}
	case errors.Is(err, model.ErrNotAddressee):
		return &httpError{http.StatusForbidden, APIError{CodeNotAddressee, "Not authorized to respond to this request"}}

	// Bad request
	case errors.Is(err, model.ErrInvalidCell):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidCell, "Invalid move"}}
	case errors.Is(err, model.ErrCannotFriendSelf):
		return &httpError{http.StatusBadRequest, APIError{CodeCannotFriendSelf, "Cannot send a friend request to yourself"}}
	case errors.Is(err, model.ErrCannotChallengeSelf):
		return &httpError{http.StatusBadRequest, APIError{CodeCannotChallengeSelf, "Cannot start a game with yourself"}}
	case errors.Is(err, model.ErrInvalidResponse):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidResponse, "Invalid status. Must be 'accepted' or 'declined'"}}

	// Conflict
	case errors.Is(err, model.ErrRoomNotActive):
		return &httpError{http.StatusConflict, APIError{CodeRoomNotActive, "Game is not active"}}
	case errors.Is(err, model.ErrTargetNotReady):
		return &httpError{http.StatusConflict, APIError{CodeTargetNotReady, "Player is not available"}}
	case errors.Is(err, model.ErrTargetBusy):
		return &httpError{http.StatusConflict, APIError{CodeTargetBusy, "Player is already in a game"}}
	case errors.Is(err, model.ErrNotConnected):
		return &httpError{http.StatusConflict, APIError{CodeNotConnected, "Open a live connection before declaring ready"}}
	case errors.Is(err, model.ErrAlreadyFriends):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyFriends, "Already friends"}}
	case errors.Is(err, model.ErrRequestAlreadyPending):
		return &httpError{http.StatusConflict, APIError{CodeRequestAlreadyPending, "Friend request already pending"}}
	case errors.Is(err, model.ErrRequestNotPending):
		return &httpError{http.StatusConflict, APIError{CodeRequestNotPending, "Request already responded to"}}
	case errors.Is(err, auth.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}

	// Auth
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Bad username or password"}}
	case errors.Is(err, auth.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired token"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
