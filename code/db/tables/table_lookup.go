package tables

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Voltaic314/GameLedger/code/db"
	"github.com/google/uuid"
)

// TableLookup maps stable table IDs to their table names
type TableLookup struct{}

func (t *TableLookup) Name() string {
	return "table_id_lookup"
}

func (t *TableLookup) Schema() string {
	return `
		table_id VARCHAR NOT NULL PRIMARY KEY,
		table_name VARCHAR NOT NULL,
		type VARCHAR NOT NULL
	`
}

// Init creates the table_id_lookup table.
func (t *TableLookup) Init(db *db.DB) error {
	return db.CreateTable(t.Name(), t.Schema())
}

// GetTableName returns the table name for a given table ID
func GetTableName(ctx context.Context, db *db.DB, tableID string) (string, error) {
	var tableName string
	query := "SELECT table_name FROM table_id_lookup WHERE table_id = ?"
	err := db.QueryRow(ctx, "", query, tableID).Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: id %s", ErrUnknownTable, tableID)
	}
	return tableName, err
}

// EnsureTableID returns the ID registered for tableName, registering a new
// one when the table has none yet.
func EnsureTableID(ctx context.Context, db *db.DB, tableName, tableType string) (string, error) {
	var tableID string
	err := db.QueryRow(ctx, "", "SELECT table_id FROM table_id_lookup WHERE table_name = ?", tableName).Scan(&tableID)
	switch {
	case err == nil:
		return tableID, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", err
	}

	tableID = GenerateTableID()
	query := "INSERT INTO table_id_lookup (table_id, table_name, type) VALUES (?, ?, ?)"
	if _, err := db.Exec(ctx, query, tableID, tableName, tableType); err != nil {
		return "", fmt.Errorf("register table %s: %w", tableName, err)
	}
	return tableID, nil
}

// GetAllTableMappingsWithTypes returns all table mappings including type information
func GetAllTableMappingsWithTypes(ctx context.Context, db *db.DB) (map[string]map[string]string, error) {
	query := "SELECT table_id, table_name, type FROM table_id_lookup"
	rows, err := db.Query(ctx, "", query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mappings := make(map[string]map[string]string)
	for rows.Next() {
		var tableID, tableName, tableType string
		if err := rows.Scan(&tableID, &tableName, &tableType); err != nil {
			return nil, err
		}
		mappings[tableID] = map[string]string{
			"table_name": tableName,
			"type":       tableType,
		}
	}
	return mappings, rows.Err()
}

// GenerateTableID generates a new UUID for a table
func GenerateTableID() string {
	return uuid.New().String()
}
