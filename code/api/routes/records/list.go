package records

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/types/api"
	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
)

// Request/Response structs for this endpoint
type ListRequest struct {
	Reload  bool          `json:"reload,omitempty"` // reread the table into the editor first
	Where   dbTypes.Patch `json:"where,omitempty"`
	OrderBy string        `json:"order_by,omitempty"`
	Desc    bool          `json:"desc,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

type ListResponseData struct {
	Table   string           `json:"table"`
	Records []dbTypes.Record `json:"records"`
}

// HandleList returns the records of a table. Record tables answer from their
// editor, so unsaved edits are included; log tables read the store.
func HandleList(w http.ResponseWriter, r *http.Request, s Server) {
	var req ListRequest
	if err := decodeBody(r, &req); err != nil {
		api.BadRequest(w, "Invalid JSON")
		return
	}
	table := tableParam(r)
	filter := dbTypes.Filter{Where: req.Where, OrderBy: req.OrderBy, Desc: req.Desc, Limit: req.Limit}

	store, err := s.Store(table)
	if err != nil {
		api.Error(w, err)
		return
	}
	if store.Table().Log {
		recs, err := store.FindAll(r.Context(), filter)
		if err != nil {
			api.Error(w, err)
			return
		}
		if recs == nil {
			recs = []dbTypes.Record{}
		}
		api.Success(w, ListResponseData{Table: table, Records: recs})
		return
	}

	ed, err := s.Editor(table)
	if err != nil {
		api.Error(w, err)
		return
	}
	if req.Reload {
		if err := ed.Load(r.Context(), filter); err != nil {
			api.Error(w, err)
			return
		}
	}
	api.Success(w, ListResponseData{Table: table, Records: ed.Items()})
}
