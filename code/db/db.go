package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "pgx"
)

// ErrUnsupportedDriver is returned by NewDB for drivers it does not know.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

type DB struct {
	conn   *sql.DB
	driver string
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	wqMap     map[string]*WriteQueue
	listeners sync.WaitGroup
}

// NewDB opens the database without any write queues.
func NewDB(driver, dsn string, logger *zap.Logger) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverDuckDB, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps :memory: databases shared and serializes writers
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := conn.PingContext(ctx); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	return &DB{
		conn:   conn,
		driver: driver,
		logger: logger.Named("db"),
		ctx:    ctx,
		cancel: cancel,
		wqMap:  make(map[string]*WriteQueue),
	}, nil
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Rebind rewrites ? placeholders into the driver's bind syntax.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InitWriteQueue initializes a batched insert queue for a log table.
func (db *DB) InitWriteQueue(table string, batchSize int, flushInterval time.Duration) {
	wq := NewWriteQueue(table, batchSize, flushInterval)
	db.mu.Lock()
	db.wqMap[table] = wq
	db.mu.Unlock()

	db.listeners.Add(1)
	go db.startQueueListener(table, wq)
}

// Close flushes all write queues and closes the connection.
func (db *DB) Close() error {
	db.cancel()
	db.listeners.Wait()

	db.mu.RLock()
	for tableName, wq := range db.wqMap {
		db.flushWriteQueue(wq, tableName, true)
	}
	db.mu.RUnlock()

	return db.conn.Close()
}

// Query runs a read query after flushing pending writes for the given table.
func (db *DB) Query(ctx context.Context, table string, query string, params ...any) (*sql.Rows, error) {
	if wq := db.queueFor(table); wq != nil {
		// pending inserts must land before we read the table
		db.flushWriteQueue(wq, table, true)
	}
	return db.conn.QueryContext(ctx, db.Rebind(query), params...)
}

// QueryRow runs a single row query after flushing pending writes for table.
func (db *DB) QueryRow(ctx context.Context, table string, query string, params ...any) *sql.Row {
	if wq := db.queueFor(table); wq != nil {
		db.flushWriteQueue(wq, table, true)
	}
	return db.conn.QueryRowContext(ctx, db.Rebind(query), params...)
}

// Exec runs a direct write query and returns the result
func (db *DB) Exec(ctx context.Context, query string, params ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.Rebind(query), params...)
}

// Write runs a direct write query (e.g. schema setup).
func (db *DB) Write(query string, params ...any) error {
	_, err := db.conn.ExecContext(db.ctx, db.Rebind(query), params...)
	return err
}

// QueueWrite queues an insert on a log table. Tables without a queue are
// written directly.
func (db *DB) QueueWrite(tableName, query string, params ...any) error {
	wq := db.queueFor(tableName)
	if wq == nil {
		_, err := db.conn.ExecContext(db.ctx, db.Rebind(query), params...)
		return err
	}
	wq.Add(typesdb.WriteOp{Query: query, Params: params})
	// only flushes once the batch size or timer is hit
	db.flushWriteQueue(wq, tableName, false)
	return nil
}

// CreateTable creates a table if it doesn't exist.
func (db *DB) CreateTable(tableName string, schema string) error {
	query := "CREATE TABLE IF NOT EXISTS " + tableName + " (" + schema + ")"
	return db.Write(query)
}

// DropTable removes a table if it exists.
func (db *DB) DropTable(tableName string) error {
	query := "DROP TABLE IF EXISTS " + tableName
	return db.Write(query)
}

// GetWriteQueue returns the write queue for a given table.
func (db *DB) GetWriteQueue(table string) typesdb.WriteQueueInterface {
	if wq := db.queueFor(table); wq != nil {
		return wq
	}
	return nil
}

// ForceFlushTable writes everything queued for tableName now.
func (db *DB) ForceFlushTable(tableName string) error {
	wq := db.queueFor(tableName)
	if wq == nil {
		return nil
	}
	wq.execMu.Lock()
	defer wq.execMu.Unlock()
	var firstErr error
	for {
		batches := wq.Flush(true)
		if len(batches) == 0 {
			return firstErr
		}
		if err := db.executeBatches(batches); err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

func (db *DB) queueFor(table string) *WriteQueue {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.wqMap[table]
}

func (db *DB) flushWriteQueue(wq *WriteQueue, tableName string, force bool) {
	wq.execMu.Lock()
	defer wq.execMu.Unlock()
	if err := db.executeBatches(wq.Flush(force)); err != nil {
		db.logger.Error("batch execution failed", zap.String("table", tableName), zap.Error(err))
	}
}

func (db *DB) executeBatches(batches []typesdb.Batch) error {
	for _, b := range batches {
		if err := db.batchExecute(b); err != nil {
			sample := len(b.Ops)
			if sample > 3 {
				sample = 3
			}
			queries := make([]string, sample)
			for i := range queries {
				queries[i] = b.Ops[i].Query
			}
			db.logger.Debug("failed batch sample", zap.String("table", b.Table), zap.Strings("queries", queries))
			return fmt.Errorf("batch for table %s (%d ops): %w", b.Table, len(b.Ops), err)
		}
	}
	return nil
}

// batchExecute runs one batch in a single transaction.
func (db *DB) batchExecute(b typesdb.Batch) (err error) {
	if len(b.Ops) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, op := range b.Ops {
		if _, err = tx.Exec(db.Rebind(op.Query), op.Params...); err != nil {
			return fmt.Errorf("failed to execute query for table %s: %w", b.Table, err)
		}
	}
	return tx.Commit()
}

func (db *DB) startQueueListener(tableName string, queue *WriteQueue) {
	defer db.listeners.Done()

	timer := time.NewTimer(queue.GetFlushInterval())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			db.flushWriteQueue(queue, tableName, true)
			timer.Reset(queue.GetFlushInterval())
		case <-db.ctx.Done():
			return
		}
	}
}
