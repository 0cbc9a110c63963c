package records

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/types/api"
	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
)

// Request/Response structs for this endpoint
type EditRequest struct {
	ID     string        `json:"id"`
	Field  string        `json:"field,omitempty"`
	Value  any           `json:"value,omitempty"`
	Fields dbTypes.Patch `json:"fields,omitempty"`
}

type EditResponseData struct {
	Table   string         `json:"table"`
	Record  dbTypes.Record `json:"record"`
	Pending dbTypes.Patch  `json:"pending"` // edits not yet written
}

// HandleEdit applies field edits in memory and schedules the debounced write.
// Either field/value or fields may be given.
func HandleEdit(w http.ResponseWriter, r *http.Request, s Server) {
	var req EditRequest
	if err := decodeBody(r, &req); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return
	}
	if req.ID == "" {
		api.BadRequest(w, "id is required")
		return
	}
	patch := req.Fields.Clone()
	if req.Field != "" {
		patch[req.Field] = req.Value
	}
	if len(patch) == 0 {
		api.BadRequest(w, "no fields to edit")
		return
	}

	table := tableParam(r)
	ed, err := s.Editor(table)
	if err != nil {
		api.Error(w, err)
		return
	}
	if err := ed.EditFields(req.ID, patch); err != nil {
		api.Error(w, err)
		return
	}

	rec, err := ed.Get(req.ID)
	if err != nil {
		api.Error(w, err)
		return
	}
	pending, _ := ed.Pending(req.ID)
	api.Success(w, EditResponseData{Table: table, Record: rec, Pending: pending})
}
