package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNewDB_RejectsUnknownDriver(t *testing.T) {
	_, err := NewDB("oracle", "x", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", pg.Rebind("UPDATE t SET a = ?, b = ? WHERE id = ?"))

	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "SELECT ? ", lite.Rebind("SELECT ? "))
}

func TestQueueWrite_VisibleToReads(t *testing.T) {
	database := openMemory(t)
	require.NoError(t, database.CreateTable("events", "id VARCHAR NOT NULL PRIMARY KEY, body VARCHAR"))
	database.InitWriteQueue("events", 10, time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, database.QueueWrite("events", "INSERT INTO events (id, body) VALUES (?, ?)", id, "x"))
	}
	assert.Equal(t, 3, database.GetWriteQueue("events").Len(), "below batch size, still queued")

	var count int
	require.NoError(t, database.QueryRow(context.Background(), "events", "SELECT COUNT(*) FROM events").Scan(&count))
	assert.Equal(t, 3, count, "reads flush the table's queue first")
	assert.Equal(t, 0, database.GetWriteQueue("events").Len())
}

func TestQueueWrite_WithoutQueueWritesDirectly(t *testing.T) {
	database := openMemory(t)
	require.NoError(t, database.CreateTable("plain", "id VARCHAR"))
	require.NoError(t, database.QueueWrite("plain", "INSERT INTO plain (id) VALUES (?)", "a"))

	var count int
	require.NoError(t, database.QueryRow(context.Background(), "plain", "SELECT COUNT(*) FROM plain").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestForceFlushTable_ReportsBatchFailure(t *testing.T) {
	database := openMemory(t)
	require.NoError(t, database.CreateTable("events", "id VARCHAR NOT NULL PRIMARY KEY"))
	database.InitWriteQueue("events", 10, time.Hour)

	require.NoError(t, database.QueueWrite("events", "INSERT INTO events (id) VALUES (?)", "dup"))
	require.NoError(t, database.QueueWrite("events", "INSERT INTO events (id) VALUES (?)", "dup"))

	assert.Error(t, database.ForceFlushTable("events"))

	var count int
	require.NoError(t, database.QueryRow(context.Background(), "", "SELECT COUNT(*) FROM events").Scan(&count))
	assert.Equal(t, 0, count, "failed batch is rolled back as a whole")
}

func TestListenerFlushesOnInterval(t *testing.T) {
	database := openMemory(t)
	require.NoError(t, database.CreateTable("events", "id VARCHAR"))
	database.InitWriteQueue("events", 100, 20*time.Millisecond)

	require.NoError(t, database.QueueWrite("events", "INSERT INTO events (id) VALUES (?)", "a"))
	require.Eventually(t, func() bool {
		return database.GetWriteQueue("events").Len() == 0
	}, time.Second, 5*time.Millisecond)
}
