package tables

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnCoerce(t *testing.T) {
	tests := []struct {
		name    string
		col     Column
		in      any
		want    any
		wantErr bool
	}{
		{"int from float", Column{Name: "q", Type: Integer}, float64(3), int64(3), false},
		{"int from json number", Column{Name: "q", Type: Integer}, json.Number("7"), int64(7), false},
		{"int from string", Column{Name: "q", Type: Integer}, "12", int64(12), false},
		{"int rejects fraction", Column{Name: "q", Type: Integer}, 2.5, nil, true},
		{"int rejects float above range", Column{Name: "q", Type: Integer}, 1e19, nil, true},
		{"int rejects float below range", Column{Name: "q", Type: Integer}, -1e300, nil, true},
		{"int rejects 2^63", Column{Name: "q", Type: Integer}, float64(math.MaxInt64), nil, true},
		{"int takes -2^63", Column{Name: "q", Type: Integer}, float64(math.MinInt64), int64(math.MinInt64), false},
		{"int rejects infinity", Column{Name: "q", Type: Integer}, math.Inf(1), nil, true},
		{"int rejects NaN", Column{Name: "q", Type: Integer}, math.NaN(), nil, true},
		{"real from int", Column{Name: "r", Type: Real}, 2, float64(2), false},
		{"bool from string", Column{Name: "b", Type: Bool}, "true", true, false},
		{"text rejects number", Column{Name: "t", Type: Text}, 4, nil, true},
		{"nullable nil", Column{Name: "t", Type: Text}, nil, nil, false},
		{"not null nil", Column{Name: "t", Type: Text, NotNull: true}, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.col.Coerce(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableSchema(t *testing.T) {
	schema := Items().Schema()
	assert.Contains(t, schema, "id VARCHAR NOT NULL PRIMARY KEY")
	assert.Contains(t, schema, "quantity BIGINT NOT NULL DEFAULT 0")
	assert.Contains(t, schema, "name VARCHAR NOT NULL DEFAULT ''")
	assert.True(t, strings.Contains(schema, "updated_at TIMESTAMP"))
}

func TestLookup(t *testing.T) {
	tbl, err := Lookup(NotesTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body"}, tbl.ColumnNames())

	_, err = Lookup("dragons")
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = tbl.Coerce("colour", "red")
	assert.ErrorIs(t, err, ErrUnknownField)
}
