package editor

import (
	"sync"

	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
)

// ChangeKind says what happened to the collection.
type ChangeKind int

const (
	ChangeAdded      ChangeKind = iota // optimistic append, create in flight
	ChangeEdited                       // field edit applied in memory
	ChangeReconciled                   // create resolved, record now carries stored defaults
	ChangeRemoved                      // record removed
	ChangeReloaded                     // collection replaced from the store
	ChangeRolledBack                   // optimistic add or remove undone after a store failure
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeEdited:
		return "edited"
	case ChangeReconciled:
		return "reconciled"
	case ChangeRemoved:
		return "removed"
	case ChangeReloaded:
		return "reloaded"
	case ChangeRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after the collection changed.
type Change struct {
	Kind   ChangeKind     `json:"kind"`
	ID     string         `json:"id,omitempty"`
	Fields []string       `json:"fields,omitempty"`
	Record typesdb.Record `json:"record"`
	Err    error          `json:"-"`
}

// subscribers is a registry of change callbacks, called in subscription order.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
	ids  []int
}

func (s *subscribers) add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Change))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.ids = append(s.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.fns, id)
			for i, v := range s.ids {
				if v == id {
					s.ids = append(s.ids[:i], s.ids[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *subscribers) notify(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.ids))
	for _, id := range s.ids {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
