package events

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/notify"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server exposes the change hub.
type Server interface {
	Hub() *notify.Hub
	Logger() *zap.Logger
}

// RegisterRoutes registers the live change feed
func RegisterRoutes(r chi.Router, s Server) {
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		HandleWS(w, r, s)
	})
}
