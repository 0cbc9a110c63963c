package tables

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Voltaic314/GameLedger/code/db"
)

// ErrUnknownField is returned for patch fields that are not columns of the table.
var ErrUnknownField = errors.New("unknown field")

// ErrInvalidValue is returned when a value cannot be stored in its column.
var ErrInvalidValue = errors.New("invalid field value")

// ColumnType is the portable storage class of a column.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Real
	Bool
	Timestamp
)

// SQL returns the DDL type name. The names are accepted by sqlite, duckdb and postgres.
func (t ColumnType) SQL() string {
	switch t {
	case Integer:
		return "BIGINT"
	case Real:
		return "DOUBLE PRECISION"
	case Bool:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// Column describes one editable field.
type Column struct {
	Name    string
	Type    ColumnType
	Default any // Go value used when a created record omits the field
	NotNull bool
}

func (c Column) ddl() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(c.Type.SQL())
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(literal(c.Default))
	}
	return b.String()
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}

// Coerce converts v into the Go type stored for this column. JSON decoding
// hands us float64 and json.Number for every number, so integral floats are
// accepted for Integer columns.
func (c Column) Coerce(v any) (any, error) {
	if v == nil {
		if c.NotNull {
			return nil, fmt.Errorf("%w: %s cannot be null", ErrInvalidValue, c.Name)
		}
		return nil, nil
	}

	switch c.Type {
	case Text:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case Integer:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			if n, ok := Int64(x); ok {
				return n, nil
			}
		case json.Number:
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n, nil
			}
		}
	case Real:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case json.Number:
			if f, err := x.Float64(); err == nil {
				return f, nil
			}
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		}
	case Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, x); err == nil {
				return ts.UTC(), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s does not accept %T", ErrInvalidValue, c.Name, v)
}

// scanner returns a destination for rows.Scan and a func reading it back.
func (c Column) scanner() (any, func() any) {
	switch c.Type {
	case Integer:
		var n sql.NullInt64
		return &n, func() any {
			if !n.Valid {
				return nil
			}
			return n.Int64
		}
	case Real:
		var f sql.NullFloat64
		return &f, func() any {
			if !f.Valid {
				return nil
			}
			return f.Float64
		}
	case Bool:
		var b sql.NullBool
		return &b, func() any {
			if !b.Valid {
				return nil
			}
			return b.Bool
		}
	case Timestamp:
		var ts sql.NullTime
		return &ts, func() any {
			if !ts.Valid {
				return nil
			}
			return ts.Time.UTC()
		}
	default:
		var s sql.NullString
		return &s, func() any {
			if !s.Valid {
				return nil
			}
			return s.String
		}
	}
}

// Table describes a record table: an id, the editable columns and timestamps.
type Table struct {
	TableName string
	Columns   []Column
	Log       bool // append-only, inserts go through the batched write queue
}

func (t *Table) Name() string {
	return t.TableName
}

func (t *Table) Schema() string {
	parts := make([]string, 0, len(t.Columns)+3)
	parts = append(parts, "id VARCHAR NOT NULL PRIMARY KEY")
	for _, c := range t.Columns {
		parts = append(parts, c.ddl())
	}
	parts = append(parts,
		"created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
		"updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
	)
	return "\n\t\t" + strings.Join(parts, ",\n\t\t") + "\n\t"
}

// Init creates the table if it does not exist.
func (t *Table) Init(database *db.DB) error {
	return database.CreateTable(t.Name(), t.Schema())
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the editable column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Coerce validates field against the table and converts value for storage.
func (t *Table) Coerce(field string, value any) (any, error) {
	c, ok := t.Column(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, t.TableName, field)
	}
	return c.Coerce(value)
}

// Int64 converts a whole float64 that fits an int64. JSON numbers decode as
// float64, so this guards every integer column against out of range input.
func Int64(x float64) (int64, bool) {
	// -2^63 is exact as a float64, 2^63 is not an int64
	if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
		return 0, false
	}
	return int64(x), true
}
