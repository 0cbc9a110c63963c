package records

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/types/api"
)

type FlushResponseData struct {
	Table string `json:"table"`
}

// HandleFlush writes every pending edit of the table now.
func HandleFlush(w http.ResponseWriter, r *http.Request, s Server) {
	table := tableParam(r)
	ed, err := s.Editor(table)
	if err != nil {
		api.Error(w, err)
		return
	}
	if err := ed.Flush(r.Context()); err != nil {
		api.Error(w, err)
		return
	}
	api.Success(w, FlushResponseData{Table: table})
}
