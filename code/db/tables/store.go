package tables

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Voltaic314/GameLedger/code/db"
	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
	"github.com/google/uuid"
)

var timestampColumn = Column{Type: Timestamp}

// RecordStore persists the records of one table. It is the store behind a
// list editor.
type RecordStore struct {
	db    *db.DB
	table *Table
	now   func() time.Time
}

// NewRecordStore returns a store for table on database.
func NewRecordStore(database *db.DB, table *Table) *RecordStore {
	return &RecordStore{
		db:    database,
		table: table,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Table returns the table definition.
func (s *RecordStore) Table() *Table {
	return s.table
}

// Coerce validates a single field edit.
func (s *RecordStore) Coerce(field string, value any) (any, error) {
	return s.table.Coerce(field, value)
}

// Create inserts rec, filling omitted fields with column defaults, and
// returns the row as stored.
func (s *RecordStore) Create(ctx context.Context, rec typesdb.Record) (typesdb.Record, error) {
	query, params, id, err := s.insertStatement(rec)
	if err != nil {
		return typesdb.Record{}, err
	}
	if _, err := s.db.Exec(ctx, query, params...); err != nil {
		return typesdb.Record{}, fmt.Errorf("insert %s %s: %w", s.table.Name(), id, err)
	}
	return s.Get(ctx, id)
}

// Append queues an insert on a log table. The row becomes visible to reads
// once the queue flushes, which every read of the table forces.
func (s *RecordStore) Append(rec typesdb.Record) (string, error) {
	query, params, id, err := s.insertStatement(rec)
	if err != nil {
		return "", err
	}
	if err := s.db.QueueWrite(s.table.Name(), query, params...); err != nil {
		return "", fmt.Errorf("append %s: %w", s.table.Name(), err)
	}
	return id, nil
}

func (s *RecordStore) insertStatement(rec typesdb.Record) (string, []any, string, error) {
	for field := range rec.Fields {
		if _, ok := s.table.Column(field); !ok {
			return "", nil, "", fmt.Errorf("%w: %s.%s", ErrUnknownField, s.table.Name(), field)
		}
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	cols := make([]string, 0, len(s.table.Columns)+3)
	params := make([]any, 0, len(s.table.Columns)+3)
	cols = append(cols, "id")
	params = append(params, id)
	for _, c := range s.table.Columns {
		v, ok := rec.Fields[c.Name]
		if !ok {
			v = c.Default
		}
		coerced, err := c.Coerce(v)
		if err != nil {
			return "", nil, "", err
		}
		cols = append(cols, c.Name)
		params = append(params, coerced)
	}
	cols = append(cols, "created_at", "updated_at")
	params = append(params, created, now)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table.Name(), strings.Join(cols, ", "), placeholders(len(cols)))
	return query, params, id, nil
}

// Get loads one record by id.
func (s *RecordStore) Get(ctx context.Context, id string) (typesdb.Record, error) {
	recs, err := s.FindAll(ctx, typesdb.Filter{Where: typesdb.Patch{"id": id}, Limit: 1})
	if err != nil {
		return typesdb.Record{}, err
	}
	if len(recs) == 0 {
		return typesdb.Record{}, fmt.Errorf("%w: %s %s", typesdb.ErrNotFound, s.table.Name(), id)
	}
	return recs[0], nil
}

// Update writes the fields in patch and bumps updated_at.
func (s *RecordStore) Update(ctx context.Context, id string, patch typesdb.Patch) error {
	if len(patch) == 0 {
		return nil
	}

	for field := range patch {
		if _, ok := s.table.Column(field); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.table.Name(), field)
		}
	}

	sets := make([]string, 0, len(patch)+1)
	params := make([]any, 0, len(patch)+2)
	// declaration order keeps the statement text stable
	for _, c := range s.table.Columns {
		v, ok := patch[c.Name]
		if !ok {
			continue
		}
		coerced, err := c.Coerce(v)
		if err != nil {
			return err
		}
		sets = append(sets, c.Name+" = ?")
		params = append(params, coerced)
	}
	sets = append(sets, "updated_at = ?")
	params = append(params, s.now(), id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", s.table.Name(), strings.Join(sets, ", "))
	res, err := s.db.Exec(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", s.table.Name(), id, err)
	}
	return expectRow(res, s.table.Name(), id)
}

// Delete removes a record.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table.Name())
	res, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", s.table.Name(), id, err)
	}
	return expectRow(res, s.table.Name(), id)
}

// FindAll returns the records matching filter, oldest first unless the
// filter orders otherwise.
func (s *RecordStore) FindAll(ctx context.Context, filter typesdb.Filter) ([]typesdb.Record, error) {
	cols := append([]string{"id"}, s.table.ColumnNames()...)
	cols = append(cols, "created_at", "updated_at")
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.table.Name())

	var where []string
	var params []any
	for _, field := range sortedFields(filter.Where) {
		value := filter.Where[field]
		if field != "id" {
			c, ok := s.table.Column(field)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.table.Name(), field)
			}
			coerced, err := c.Coerce(value)
			if err != nil {
				return nil, err
			}
			value = coerced
		}
		where = append(where, field+" = ?")
		params = append(params, value)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	order := "created_at"
	if filter.OrderBy != "" {
		if _, ok := s.table.Column(filter.OrderBy); !ok && filter.OrderBy != "updated_at" {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.table.Name(), filter.OrderBy)
		}
		order = filter.OrderBy
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", order, dir, dir)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(ctx, s.table.Name(), query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table.Name(), err)
	}
	defer rows.Close()

	var out []typesdb.Record
	for rows.Next() {
		var rec typesdb.Record
		dests := make([]any, 0, len(cols))
		reads := make([]func() any, len(s.table.Columns))
		createdDest, createdRead := timestampColumn.scanner()
		updatedDest, updatedRead := timestampColumn.scanner()

		dests = append(dests, &rec.ID)
		for i, c := range s.table.Columns {
			var dest any
			dest, reads[i] = c.scanner()
			dests = append(dests, dest)
		}
		dests = append(dests, createdDest, updatedDest)

		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table.Name(), err)
		}
		rec.Fields = make(typesdb.Patch, len(s.table.Columns))
		for i, c := range s.table.Columns {
			rec.Fields[c.Name] = reads[i]()
		}
		if ts, ok := createdRead().(time.Time); ok {
			rec.CreatedAt = ts
		}
		if ts, ok := updatedRead().(time.Time); ok {
			rec.UpdatedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func expectRow(res interface{ RowsAffected() (int64, error) }, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		// some drivers cannot count; treat as applied
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", typesdb.ErrNotFound, table, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedFields(p typesdb.Patch) []string {
	names := p.Fields()
	slices.Sort(names)
	return names
}
