package tables

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/Voltaic314/GameLedger/code/db"
	"github.com/Voltaic314/GameLedger/code/db/tables"
	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
)

// ListTablesResponse represents the output for listing tables
type ListTablesResponse struct {
	Tables []dbTypes.TableInfo `json:"tables"`
}

// ListTables lists all registered ledger tables, sorted by name
func ListTables(ctx context.Context, database *db.DB) (*ListTablesResponse, error) {
	tableMappingsWithTypes, err := tables.GetAllTableMappingsWithTypes(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve table mappings from database: %w", err)
	}

	tableList := make([]dbTypes.TableInfo, 0, len(tableMappingsWithTypes))
	for tableID, info := range tableMappingsWithTypes {
		tableList = append(tableList, dbTypes.TableInfo{
			TableID:   tableID,
			TableName: info["table_name"],
			Type:      info["type"],
		})
	}
	slices.SortFunc(tableList, func(a, b dbTypes.TableInfo) int {
		return cmp.Compare(a.TableName, b.TableName)
	})

	return &ListTablesResponse{Tables: tableList}, nil
}
