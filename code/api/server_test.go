package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Voltaic314/GameLedger/code/config"
	"github.com/Voltaic314/GameLedger/code/notify"
	"github.com/Voltaic314/GameLedger/code/sdk"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *LedgerServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = ":memory:"
	cfg.Editor.DebounceWindow = 10 * time.Millisecond

	client, err := sdk.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	s := newServer(client)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func call(t *testing.T, s *LedgerServer, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type recordJSON struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func TestHealthAndTables(t *testing.T) {
	s := newTestServer(t)

	code, env := call(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	health := decode[struct {
		Driver           string `json:"driver"`
		DebounceWindowMS int64  `json:"debounce_window_ms"`
	}](t, env)
	assert.Equal(t, "sqlite3", health.Driver)
	assert.Equal(t, int64(10), health.DebounceWindowMS)

	code, env = call(t, s, http.MethodGet, "/tables/list", nil)
	require.Equal(t, http.StatusOK, code)
	data := decode[struct {
		Tables []struct {
			TableName string `json:"table_name"`
		} `json:"tables"`
	}](t, env)
	assert.Len(t, data.Tables, 5)
}

func TestRecordLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, env := call(t, s, http.MethodPost, "/records/items/new", map[string]any{
		"fields": map[string]any{"name": "Potion"},
		"wait":   true,
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	created := decode[struct {
		Record  recordJSON `json:"record"`
		Pending bool       `json:"pending"`
	}](t, env)
	id := created.Record.ID
	require.NotEmpty(t, id)
	assert.False(t, created.Pending)
	assert.Equal(t, float64(0), created.Record.Fields["quantity"], "stored default")

	code, env = call(t, s, http.MethodPost, "/records/items/edit", map[string]any{"id": id, "field": "quantity", "value": 7})
	require.Equal(t, http.StatusOK, code, env.Error)
	edited := decode[struct {
		Record recordJSON `json:"record"`
	}](t, env)
	assert.Equal(t, float64(7), edited.Record.Fields["quantity"], "edit is visible before it is written")

	code, _ = call(t, s, http.MethodPost, "/records/items/flush", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, s, http.MethodPost, "/records/items/list", map[string]any{"reload": true})
	require.Equal(t, http.StatusOK, code)
	listed := decode[struct {
		Records []recordJSON `json:"records"`
	}](t, env)
	require.Len(t, listed.Records, 1)
	assert.Equal(t, float64(7), listed.Records[0].Fields["quantity"], "edit reached the store")

	code, _ = call(t, s, http.MethodPost, "/records/items/delete", map[string]any{"id": id})
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, s, http.MethodPost, "/records/items/delete", map[string]any{"id": id})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRecordErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown table", "/records/dragons/list", nil, http.StatusBadRequest},
		{"log table has no editor", "/records/item_logs/new", map[string]any{}, http.StatusBadRequest},
		{"unknown field", "/records/notes/new", map[string]any{"fields": map[string]any{"colour": "red"}}, http.StatusBadRequest},
		{"edit unknown id", "/records/notes/edit", map[string]any{"id": "nope", "field": "title", "value": "x"}, http.StatusNotFound},
		{"edit without id", "/records/notes/edit", map[string]any{"field": "title"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := call(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}

	code, env := call(t, s, http.MethodPost, "/records/item_logs/list", nil)
	assert.Equal(t, http.StatusOK, code, "log tables list from the store")
	assert.True(t, env.Success)
}

func TestAdjustAndLogs(t *testing.T) {
	s := newTestServer(t)
	_, env := call(t, s, http.MethodPost, "/records/items/new", map[string]any{
		"fields": map[string]any{"name": "Ether", "quantity": 2},
		"wait":   true,
	})
	id := decode[struct {
		Record recordJSON `json:"record"`
	}](t, env).Record.ID

	code, env := call(t, s, http.MethodPost, "/items/adjust", map[string]any{"item_id": id, "delta": 3, "reason": "loot"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, float64(5), decode[map[string]any](t, env)["quantity_after"])

	code, _ = call(t, s, http.MethodPost, "/items/adjust", map[string]any{"item_id": id, "delta": -10})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, s, http.MethodPost, "/items/logs", map[string]any{"item_id": id})
	require.Equal(t, http.StatusOK, code)
	logs := decode[struct {
		Logs []recordJSON `json:"logs"`
	}](t, env)
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, "loot", logs.Logs[0].Fields["reason"])
}

func TestBondSummary(t *testing.T) {
	s := newTestServer(t)
	for _, level := range []int{1, 2} {
		code, env := call(t, s, http.MethodPost, "/records/bond_logs/new", map[string]any{
			"fields": map[string]any{"creature": "Slime", "bond_level": level, "bond_points": 25},
			"wait":   true,
		})
		require.Equal(t, http.StatusOK, code, env.Error)
	}

	code, env := call(t, s, http.MethodGet, "/bonds/summary", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	data := decode[struct {
		Summaries []struct {
			Creature    string `json:"creature"`
			Entries     int    `json:"entries"`
			TotalPoints int64  `json:"total_points"`
			Config      struct {
				Placeholder bool `json:"placeholder"`
			} `json:"config"`
		} `json:"summaries"`
	}](t, env)
	require.Len(t, data.Summaries, 1)
	assert.Equal(t, "Slime", data.Summaries[0].Creature)
	assert.Equal(t, 2, data.Summaries[0].Entries)
	assert.Equal(t, int64(50), data.Summaries[0].TotalPoints)
	assert.True(t, data.Summaries[0].Config.Placeholder)
}

func TestWordCount(t *testing.T) {
	s := newTestServer(t)
	code, env := call(t, s, http.MethodPost, "/tools/wordcount", map[string]any{"text": `He said "hi there" twice`})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), decode[map[string]any](t, env)["words"])
}

func TestEventsWebsocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events/ws?table=notes"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)

	// filtered out by the table parameter
	call(t, s, http.MethodPost, "/records/items/new", map[string]any{"fields": map[string]any{"name": "x"}, "wait": true})
	call(t, s, http.MethodPost, "/records/notes/new", map[string]any{"fields": map[string]any{"title": "hello"}, "wait": true})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev notify.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "notes", ev.Table)
	assert.Equal(t, "added", ev.Kind)
	require.NotNil(t, ev.Record)
	assert.Equal(t, "hello", ev.Record.Fields["title"])
}
