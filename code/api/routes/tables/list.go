package tables

import (
	"net/http"

	"github.com/Voltaic314/GameLedger/code/types/api"
	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
)

// Response struct for this endpoint
type ListTablesResponseData struct {
	Tables []dbTypes.TableInfo `json:"tables"`
}

// HandleListTables handles requests to list all ledger tables
func HandleListTables(w http.ResponseWriter, r *http.Request, s Server) {
	tableList, err := s.ListTables(r.Context())
	if err != nil {
		api.InternalError(w, "Failed to retrieve table mappings from database")
		return
	}
	api.Success(w, ListTablesResponseData{Tables: tableList})
}
