package records

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/types/api"
)

// Request/Response structs for this endpoint
type DeleteRequest struct {
	ID string `json:"id"`
}

type DeleteResponseData struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

// HandleDelete removes a record. A failed delete is reported and the record
// stays in the list.
func HandleDelete(w http.ResponseWriter, r *http.Request, s Server) {
	var req DeleteRequest
	if err := decodeBody(r, &req); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return
	}
	if req.ID == "" {
		api.BadRequest(w, "id is required")
		return
	}

	table := tableParam(r)
	ed, err := s.Editor(table)
	if err != nil {
		api.Error(w, err)
		return
	}
	if err := ed.Remove(r.Context(), req.ID); err != nil {
		api.Error(w, err)
		return
	}
	api.Success(w, DeleteResponseData{Table: table, ID: req.ID})
}
