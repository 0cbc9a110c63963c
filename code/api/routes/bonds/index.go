package bonds

import (
	"context"
	"net/http"

	coreBonds "github.com/Voltaic314/GameLedger/code/core/bonds"
	"github.com/Voltaic314/GameLedger/code/types/api"
	"github.com/go-chi/chi/v5"
)

// Server summarizes bond logs.
type Server interface {
	BondSummaries(ctx context.Context) ([]coreBonds.Summary, error)
}

// RegisterRoutes registers all bond-related routes
func RegisterRoutes(r chi.Router, s Server) {
	r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
		HandleSummary(w, r, s)
	})
}

// HandleSummary returns the bond summary of every creature with logs
func HandleSummary(w http.ResponseWriter, r *http.Request, s Server) {
	summaries, err := s.BondSummaries(r.Context())
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Success(w, coreBonds.SummaryResponse{Summaries: summaries})
}
