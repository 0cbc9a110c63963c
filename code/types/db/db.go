// Package db provides the record and write-queue types shared by the store,
// the debounced mutator and the list editor.
package db

import (
	"time"
)

// WriteOp represents a queued SQL operation
type WriteOp struct {
	Query  string
	Params []any
}

// Batch represents a group of write operations for one table, executed in a
// single transaction
type Batch struct {
	Table string
	Ops   []WriteOp
}

// WriteQueueInterface defines methods for write queue operations
type WriteQueueInterface interface {
	Add(op WriteOp)
	Flush(force ...bool) []Batch
	IsReadyToWrite() bool
	Len() int
	GetFlushInterval() time.Duration
	SetFlushInterval(interval time.Duration)
}
