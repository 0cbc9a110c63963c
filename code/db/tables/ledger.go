package tables

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTable is returned when a table name is not part of the ledger.
var ErrUnknownTable = errors.New("unknown table")

// Table names.
const (
	ItemsTable           = "items"
	ItemLogsTable        = "item_logs"
	BondLogsTable        = "bond_logs"
	CreatureConfigsTable = "creature_configs"
	NotesTable           = "notes"
)

// Items tracks owned items and their current quantity.
func Items() *Table {
	return &Table{
		TableName: ItemsTable,
		Columns: []Column{
			{Name: "name", Type: Text, Default: "", NotNull: true},
			{Name: "category", Type: Text, Default: ""},
			{Name: "quantity", Type: Integer, Default: int64(0), NotNull: true},
			{Name: "notes", Type: Text, Default: ""},
		},
	}
}

// ItemLogs records every quantity change applied to an item.
func ItemLogs() *Table {
	return &Table{
		TableName: ItemLogsTable,
		Log:       true,
		Columns: []Column{
			{Name: "item_id", Type: Text, NotNull: true, Default: ""},
			{Name: "delta", Type: Integer, Default: int64(0), NotNull: true},
			{Name: "quantity_after", Type: Integer, Default: int64(0), NotNull: true},
			{Name: "reason", Type: Text, Default: ""},
		},
	}
}

// BondLogs is one bond reading between the user and a creature.
func BondLogs() *Table {
	return &Table{
		TableName: BondLogsTable,
		Columns: []Column{
			{Name: "creature", Type: Text, Default: "", NotNull: true},
			{Name: "bond_level", Type: Integer, Default: int64(0), NotNull: true},
			{Name: "bond_points", Type: Integer, Default: int64(0), NotNull: true},
			{Name: "logged_on", Type: Text, Default: ""},
			{Name: "notes", Type: Text, Default: ""},
		},
	}
}

// CreatureConfigs holds the per-creature bond ceilings.
func CreatureConfigs() *Table {
	return &Table{
		TableName: CreatureConfigsTable,
		Columns: []Column{
			{Name: "creature", Type: Text, Default: "", NotNull: true},
			{Name: "max_level", Type: Integer, Default: int64(10), NotNull: true},
			{Name: "points_per_level", Type: Integer, Default: int64(100), NotNull: true},
		},
	}
}

// Notes are free-form text entries.
func Notes() *Table {
	return &Table{
		TableName: NotesTable,
		Columns: []Column{
			{Name: "title", Type: Text, Default: "", NotNull: true},
			{Name: "body", Type: Text, Default: ""},
		},
	}
}

// Ledger returns every record table keyed by name.
func Ledger() map[string]*Table {
	all := []*Table{Items(), ItemLogs(), BondLogs(), CreatureConfigs(), Notes()}
	out := make(map[string]*Table, len(all))
	for _, t := range all {
		out[t.Name()] = t
	}
	return out
}

// LedgerNames returns the record table names, sorted.
func LedgerNames() []string {
	names := make([]string, 0, 5)
	for name := range Ledger() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named ledger table.
func Lookup(name string) (*Table, error) {
	t, ok := Ledger()[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}
