package items

import (
	"encoding/json"
	"net/http"

	coreItems "github.com/Voltaic314/GameLedger/code/core/items"
	"github.com/Voltaic314/GameLedger/code/types/api"
)

// HandleAdjust changes an item's quantity by delta and logs the change
func HandleAdjust(w http.ResponseWriter, r *http.Request, s Server) {
	var req coreItems.AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return
	}
	if req.ItemID == "" {
		api.BadRequest(w, "item_id is required")
		return
	}

	resp, err := s.AdjustQuantity(req.ItemID, req.Delta, req.Reason)
	if err != nil {
		api.Error(w, err)
		return
	}
	api.Success(w, resp)
}
