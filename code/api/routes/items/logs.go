package items

import (
	"encoding/json"
	"net/http"

	coreItems "github.com/Voltaic314/GameLedger/code/core/items"
	"github.com/Voltaic314/GameLedger/code/types/api"
)

// HandleLogs lists the quantity changes of one item, newest first
func HandleLogs(w http.ResponseWriter, r *http.Request, s Server) {
	var req coreItems.ListLogsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return
	}
	if req.ItemID == "" {
		api.BadRequest(w, "item_id is required")
		return
	}

	logs, err := s.ItemLogs(r.Context(), req.ItemID, req.Limit)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Success(w, coreItems.ListLogsResponse{Logs: logs})
}
