package tools

import (
	"encoding/json"
	"net/http"

	"github.com/Voltaic314/GameLedger/code/core/words"
	"github.com/Voltaic314/GameLedger/code/types/api"
)

// HandleWordCount counts the words of a text, leaving out quoted dialogue
func HandleWordCount(w http.ResponseWriter, r *http.Request, s Server) {
	var req words.CountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return
	}
	api.Success(w, s.CountWords(req.Text))
}
