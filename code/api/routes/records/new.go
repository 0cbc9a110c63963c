package records

import (
	"context"
	"net/http"

	"github.com/Voltaic314/GameLedger/code/types/api"
	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
)

// Request/Response structs for this endpoint
type NewRequest struct {
	Fields dbTypes.Patch `json:"fields"`
	Wait   bool          `json:"wait,omitempty"` // answer once the create has landed
}

type NewResponseData struct {
	Table   string         `json:"table"`
	Record  dbTypes.Record `json:"record"`
	Pending bool           `json:"pending"` // create still in flight
}

// HandleNew appends a record. The record is in the list when the response is
// sent; unless wait is set the create may still be running.
func HandleNew(w http.ResponseWriter, r *http.Request, s Server) {
	var req NewRequest
	if err := decodeBody(r, &req); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return
	}
	table := tableParam(r)
	ed, err := s.Editor(table)
	if err != nil {
		api.Error(w, err)
		return
	}

	// the create must outlive this request
	creation, err := ed.Add(context.WithoutCancel(r.Context()), func() dbTypes.Patch { return req.Fields })
	if err != nil {
		api.Error(w, err)
		return
	}

	if req.Wait {
		rec, err := creation.Wait(r.Context())
		if err != nil {
			api.Error(w, err)
			return
		}
		api.Success(w, NewResponseData{Table: table, Record: rec})
		return
	}

	rec, err := ed.Get(creation.ID())
	if err != nil {
		// already rolled back
		rec = dbTypes.Record{ID: creation.ID(), Fields: req.Fields}
	}
	pending := true
	select {
	case <-creation.Done():
		pending = false
	default:
	}
	api.Success(w, NewResponseData{Table: table, Record: rec, Pending: pending})
}
