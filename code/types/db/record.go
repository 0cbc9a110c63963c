package db

import (
	"errors"
	"maps"
	"time"
)

// Patch is a partial set of named field values.
type Patch map[string]any

// Clone returns a shallow copy of p. A nil patch clones to an empty one.
func (p Patch) Clone() Patch {
	out := make(Patch, len(p))
	maps.Copy(out, p)
	return out
}

// Merge copies every field of other into p, last write wins per field.
func (p Patch) Merge(other Patch) {
	maps.Copy(p, other)
}

// Fields returns the field names in p.
func (p Patch) Fields() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	return names
}

// Record is one editable row. ID is allocated once and never changes.
type Record struct {
	ID        string    `json:"id"`
	Fields    Patch     `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of r whose Fields can be mutated independently.
func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// Get returns the named field value.
func (r Record) Get(field string) (any, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// Filter narrows FindAll. Zero values mean no constraint.
type Filter struct {
	Where   Patch  // equality constraints, ANDed
	OrderBy string // column name, ascending unless Desc
	Desc    bool
	Limit   int
}

// TableInfo represents information about a database table
type TableInfo struct {
	TableID   string `json:"table_id"`
	TableName string `json:"table_name"`
	Type      string `json:"type"` // "records" or "log"
}

// ErrNotFound reports an identity that is not present in the collection or
// the store.
var ErrNotFound = errors.New("record not found")
