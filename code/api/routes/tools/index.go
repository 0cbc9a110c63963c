package tools

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/core/words"
	"github.com/go-chi/chi/v5"
)

// Server runs the text tools.
type Server interface {
	CountWords(text string) *words.CountResponse
}

// RegisterRoutes registers the stateless tool routes
func RegisterRoutes(r chi.Router, s Server) {
	r.Post("/wordcount", func(w http.ResponseWriter, r *http.Request) {
		HandleWordCount(w, r, s)
	})
}
