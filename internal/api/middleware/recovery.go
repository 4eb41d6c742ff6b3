package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tictactoe-live/internal/api/apierr"
	"github.com/mcoot/tictactoe-live/internal/middleware"
)

// Recovery turns panics into a JSON 500
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	// An upgraded channel no longer owns an HTTP response
	if websocket.IsWebSocketUpgrade(r) {
		return
	}
	apierr.WriteError(w, apierr.NewInternalError())
}
