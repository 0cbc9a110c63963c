package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/Voltaic314/GameLedger/code/db"
	"github.com/Voltaic314/GameLedger/code/db/tables"
	"go.uber.org/zap"
)

// InitDB creates the lookup table and every ledger table that does not exist
// yet, and registers a table ID for each. It is safe to run on every start.
func InitDB(ctx context.Context, database *db.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	lookup := &tables.TableLookup{}
	if err := lookup.Init(database); err != nil {
		return fmt.Errorf("create %s: %w", lookup.Name(), err)
	}

	for _, name := range tables.LedgerNames() {
		table, err := tables.Lookup(name)
		if err != nil {
			return err
		}
		if err := table.Init(database); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}

		tableType := "records"
		if table.Log {
			tableType = "log"
		}
		tableID, err := tables.EnsureTableID(ctx, database, name, tableType)
		if err != nil {
			return err
		}
		logger.Debug("table ready", zap.String("table", name), zap.String("table_id", tableID), zap.String("type", tableType))
	}

	logger.Info("database initialized", zap.String("driver", database.Driver()), zap.Int("tables", len(tables.LedgerNames())))
	return nil
}

// RemoveDatabase deletes a file-backed database and its write-ahead files so
// InitDB starts from scratch.
func RemoveDatabase(path string) error {
	for _, p := range []string{path, path + ".wal", path + "-wal", path + "-shm"} {
		if err := os.RemoveAll(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
