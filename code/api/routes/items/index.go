package items

import (
	"context"
	"net/http"

	coreItems "github.com/Voltaic314/GameLedger/code/core/items"
	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
	"github.com/go-chi/chi/v5"
)

// Server adjusts item quantities and reads their log.
type Server interface {
	AdjustQuantity(itemID string, delta int64, reason string) (*coreItems.AdjustResponse, error)
	ItemLogs(ctx context.Context, itemID string, limit int) ([]dbTypes.Record, error)
}

// RegisterRoutes registers all item-related routes
func RegisterRoutes(r chi.Router, s Server) {
	r.Post("/adjust", func(w http.ResponseWriter, r *http.Request) {
		HandleAdjust(w, r, s)
	})
	r.Post("/logs", func(w http.ResponseWriter, r *http.Request) {
		HandleLogs(w, r, s)
	})
}
