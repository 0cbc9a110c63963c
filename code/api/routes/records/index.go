package records

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Voltaic314/GameLedger/code/db/tables"
	"github.com/Voltaic314/GameLedger/code/editor"
	"github.com/go-chi/chi/v5"
)

// Server hands out the editor and store of a table.
type Server interface {
	Editor(table string) (*editor.ListEditor, error)
	Store(table string) (*tables.RecordStore, error)
}

// RegisterRoutes registers the record routes of one table. The table name is
// the {table} URL parameter.
func RegisterRoutes(r chi.Router, s Server) {
	r.Post("/list", func(w http.ResponseWriter, r *http.Request) {
		HandleList(w, r, s)
	})
	r.Post("/new", func(w http.ResponseWriter, r *http.Request) {
		HandleNew(w, r, s)
	})
	r.Post("/edit", func(w http.ResponseWriter, r *http.Request) {
		HandleEdit(w, r, s)
	})
	r.Post("/delete", func(w http.ResponseWriter, r *http.Request) {
		HandleDelete(w, r, s)
	})
	r.Post("/flush", func(w http.ResponseWriter, r *http.Request) {
		HandleFlush(w, r, s)
	})
}

func tableParam(r *http.Request) string {
	return chi.URLParam(r, "table")
}

// decodeBody decodes an optional JSON body; an empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
