package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as the response body with the given status
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Ack writes a {"msg": ...} acknowledgement
func Ack(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Message{Message: msg})
}
