package db

import (
	"sync"
	"time"

	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
)

// WriteQueue buffers append-only inserts for a single log table
type WriteQueue struct {
	mu           sync.Mutex
	tableName    string
	queue        []typesdb.WriteOp
	lastFlushed  time.Time
	batchSize    int
	flushTimer   time.Duration // interval between timed flushes
	readyToWrite bool          // batch size reached
	isWriting    bool          // prevents concurrent flushes

	// held from snapshot until the batch is committed, so a reader that
	// flushes first never overtakes a batch already taken off the queue
	execMu sync.Mutex
}

// NewWriteQueue creates a new write queue for a specific table
func NewWriteQueue(tableName string, batchSize int, flushTimer time.Duration) *WriteQueue {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &WriteQueue{
		tableName:   tableName,
		lastFlushed: time.Now(),
		batchSize:   batchSize,
		flushTimer:  flushTimer,
	}
}

// Add queues a new operation
func (wq *WriteQueue) Add(op typesdb.WriteOp) {
	wq.mu.Lock()
	defer wq.mu.Unlock()

	wq.queue = append(wq.queue, op)
	if len(wq.queue) >= wq.batchSize {
		wq.readyToWrite = true
	}
}

// Len returns the number of queued operations
func (wq *WriteQueue) Len() int {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return len(wq.queue)
}

// IsReadyToWrite returns whether the queue is ready to be flushed
func (wq *WriteQueue) IsReadyToWrite() bool {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.readyToWrite
}

// GetFlushInterval returns the current flush interval
func (wq *WriteQueue) GetFlushInterval() time.Duration {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.flushTimer
}

// SetFlushInterval allows changing the flush interval
func (wq *WriteQueue) SetFlushInterval(interval time.Duration) {
	wq.mu.Lock()
	wq.flushTimer = interval
	wq.mu.Unlock()
}

// Flush snapshots and clears the queue, returning it as a batch. Without force
// it only does so once the batch size or the flush interval is reached.
func (wq *WriteQueue) Flush(force ...bool) []typesdb.Batch {
	if !wq.shouldFlush(force...) {
		return nil
	}

	wq.mu.Lock()
	ops := wq.queue
	wq.queue = nil
	wq.lastFlushed = time.Now()
	wq.isWriting = false
	wq.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}
	return []typesdb.Batch{{Table: wq.tableName, Ops: ops}}
}

// shouldFlush determines if a flush should occur and claims the writing state
func (wq *WriteQueue) shouldFlush(force ...bool) bool {
	wq.mu.Lock()
	defer wq.mu.Unlock()

	if wq.isWriting {
		return false
	}
	if len(wq.queue) == 0 {
		return false
	}

	forced := len(force) > 0 && force[0]
	timeBased := time.Since(wq.lastFlushed) >= wq.flushTimer
	if !forced && !wq.readyToWrite && !timeBased {
		return false
	}

	wq.isWriting = true
	wq.readyToWrite = false
	return true
}
