package tables

import (
	"context"
	"net/http"

	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
	"github.com/go-chi/chi/v5"
)

// Server lists the registered tables.
type Server interface {
	ListTables(ctx context.Context) ([]dbTypes.TableInfo, error)
}

// RegisterRoutes registers all table-related routes
func RegisterRoutes(r chi.Router, s Server) {
	r.Get("/list", func(w http.ResponseWriter, r *http.Request) {
		HandleListTables(w, r, s)
	})
}
