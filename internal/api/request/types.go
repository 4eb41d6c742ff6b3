package request

// RegisterRequest is the request body for registering an account
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateRoomRequest is the request body for creating a room
type CreateRoomRequest struct {
	IsPublic bool `json:"is_public"`
}

// MoveRequest is the request body for submitting a move
// Index is a pointer so a missing field is told apart from cell 0
type MoveRequest struct {
	Index *int `json:"index"`
}

// RespondRequest is the request body for answering a friend request
type RespondRequest struct {
	Status string `json:"status"`
}
