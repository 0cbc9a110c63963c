package server

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/db"
	"github.com/Voltaic314/GameLedger/code/db/tables"
	"github.com/Voltaic314/GameLedger/code/editor"
	"github.com/Voltaic314/GameLedger/code/types/api"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server is what the health check reads.
type Server interface {
	DB() *db.DB
	Editor(table string) (*editor.ListEditor, error)
	Logger() *zap.Logger
}

type HealthResponseData struct {
	Status           string `json:"status"`
	Driver           string `json:"driver"`
	DebounceWindowMS int64  `json:"debounce_window_ms"`
}

// RegisterRoutes registers the service-level routes
func RegisterRoutes(r chi.Router, s Server) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		HandleHealth(w, r, s)
	})
}

// HandleHealth reports that the service is up, which store it uses and how
// long edits wait before they are written
func HandleHealth(w http.ResponseWriter, r *http.Request, s Server) {
	resp := HealthResponseData{Status: "ok", Driver: s.DB().Driver()}
	if ed, err := s.Editor(tables.ItemsTable); err == nil {
		resp.DebounceWindowMS = ed.Window().Milliseconds()
	}
	api.Success(w, resp)
}
