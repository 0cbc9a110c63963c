package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with hooks for failure and timing.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]typesdb.Record
	order   []string
	updates []update
	deletes []string

	createGate chan struct{} // when set, Create blocks until it is closed
	createErr  error
	deleteErr  error
}

type update struct {
	id    string
	patch typesdb.Patch
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]typesdb.Record)}
}

func (s *memStore) seed(id string, fields typesdb.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = typesdb.Record{ID: id, Fields: fields.Clone()}
	s.order = append(s.order, id)
}

func (s *memStore) Create(ctx context.Context, rec typesdb.Record) (typesdb.Record, error) {
	if s.createGate != nil {
		select {
		case <-s.createGate:
		case <-ctx.Done():
			return typesdb.Record{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return typesdb.Record{}, s.createErr
	}
	stored := rec.Clone()
	if _, ok := stored.Fields["value"]; !ok {
		stored.Fields["value"] = 0
	}
	stored.Fields["kind"] = "default"
	stored.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.rows[rec.ID] = stored
	s.order = append(s.order, rec.ID)
	return stored.Clone(), nil
}

func (s *memStore) Update(ctx context.Context, id string, patch typesdb.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update{id: id, patch: patch.Clone()})
	rec, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("%w: %s", typesdb.ErrNotFound, id)
	}
	rec.Fields.Merge(patch)
	s.rows[id] = rec
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes = append(s.deletes, id)
	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("%w: %s", typesdb.ErrNotFound, id)
	}
	delete(s.rows, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) FindAll(ctx context.Context, filter typesdb.Filter) ([]typesdb.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]typesdb.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id].Clone())
	}
	return out, nil
}

func (s *memStore) row(id string) (typesdb.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	return rec.Clone(), ok
}

func (s *memStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func newLoadedEditor(t *testing.T, store *memStore, opts ...Option) *ListEditor {
	t.Helper()
	e := New(store, append([]Option{WithWindow(30 * time.Millisecond)}, opts...)...)
	require.NoError(t, e.Load(context.Background(), typesdb.Filter{}))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestEdit_AppliesInMemoryBeforeAnyWrite(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	e := newLoadedEditor(t, store, WithWindow(time.Hour))

	require.NoError(t, e.Edit("r1", "value", 5))

	rec, err := e.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Fields["value"])
	assert.Equal(t, 0, store.updateCount(), "write is still debounced")

	pending, ok := e.Pending("r1")
	require.True(t, ok)
	assert.Equal(t, typesdb.Patch{"value": 5}, pending)

	require.Eventually(t, func() bool { return store.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	stored, _ := store.row("r1")
	assert.Equal(t, 5, stored.Fields["value"])
}

func TestEdit_BurstProducesOneMergedWrite(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1, "label": "a"})
	e := newLoadedEditor(t, store)

	require.NoError(t, e.Edit("r1", "value", 2))
	require.NoError(t, e.Edit("r1", "label", "b"))
	require.NoError(t, e.Edit("r1", "value", 3))
	require.NoError(t, e.Flush(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.updates, 1)
	assert.Equal(t, typesdb.Patch{"value": 3, "label": "b"}, store.updates[0].patch)
}

func TestEdit_UnknownIdentity(t *testing.T) {
	e := newLoadedEditor(t, newMemStore())
	err := e.Edit("missing", "value", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEdit_StoreFailureReachesObserverOnly(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})

	failed := make(chan error, 1)
	obs := observer{failed: failed}
	e := newLoadedEditor(t, store, WithObserver(obs))

	// the row disappears behind the editor's back
	store.mu.Lock()
	delete(store.rows, "r1")
	store.mu.Unlock()

	require.NoError(t, e.Edit("r1", "value", 9))
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, typesdb.ErrNotFound)
	case <-time.After(time.Second):
		t.Fatal("observer never saw the failed write")
	}
}

type observer struct {
	failed chan error
}

func (o observer) WriteFlushed(string, typesdb.Patch) {}

func (o observer) WriteFailed(_ string, _ typesdb.Patch, err error) {
	o.failed <- err
}

func TestAdd_AppendsThenReconciles(t *testing.T) {
	store := newMemStore()
	e := newLoadedEditor(t, store, WithIDFunc(func() string { return "new-1" }))

	var kinds []ChangeKind
	var mu sync.Mutex
	e.Subscribe(func(c Change) {
		mu.Lock()
		kinds = append(kinds, c.Kind)
		mu.Unlock()
	})

	c, err := e.Add(context.Background(), func() typesdb.Patch { return typesdb.Patch{"value": 0} })
	require.NoError(t, err)
	assert.Equal(t, "new-1", c.ID())
	assert.Equal(t, 1, e.Len(), "append is synchronous")

	rec, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", rec.Fields["kind"])

	got, err := e.Get("new-1")
	require.NoError(t, err)
	want := typesdb.Record{ID: "new-1", Fields: typesdb.Patch{"value": 0, "kind": "default"}}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(typesdb.Record{}, "CreatedAt", "UpdatedAt")); diff != "" {
		t.Errorf("reconciled record mismatch (-want +got):\n%s", diff)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []ChangeKind{ChangeAdded, ChangeReconciled}, kinds)
	mu.Unlock()
}

func TestAdd_EditDuringCreateWaitsForInsert(t *testing.T) {
	store := newMemStore()
	store.createGate = make(chan struct{})
	e := newLoadedEditor(t, store)

	c, err := e.Add(context.Background(), func() typesdb.Patch { return typesdb.Patch{"value": 1} })
	require.NoError(t, err)
	require.NoError(t, e.Edit(c.ID(), "value", 7))

	time.Sleep(60 * time.Millisecond) // window elapsed, write is parked on the create
	assert.Equal(t, 0, store.updateCount())

	close(store.createGate)
	_, err = c.Wait(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return store.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	stored, ok := store.row(c.ID())
	require.True(t, ok)
	assert.Equal(t, 7, stored.Fields["value"])

	got, err := e.Get(c.ID())
	require.NoError(t, err)
	assert.Equal(t, 7, got.Fields["value"], "local edit survives reconcile")
}

func TestAdd_FailedCreateRollsBack(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("constraint violated")
	e := newLoadedEditor(t, store)

	rolledBack := make(chan Change, 1)
	e.Subscribe(func(c Change) {
		if c.Kind == ChangeRolledBack {
			rolledBack <- c
		}
	})

	c, err := e.Add(context.Background(), nil)
	require.NoError(t, err)

	_, err = c.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.createErr)
	assert.Equal(t, 0, e.Len())

	select {
	case ch := <-rolledBack:
		assert.Equal(t, c.ID(), ch.ID)
		assert.ErrorIs(t, ch.Err, store.createErr)
	case <-time.After(time.Second):
		t.Fatal("no rollback notification")
	}
}

func TestRemove_CancelsPendingWrite(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	e := newLoadedEditor(t, store)

	require.NoError(t, e.Edit("r1", "value", 2))
	require.NoError(t, e.Remove(context.Background(), "r1"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, store.updateCount(), "pending write must never reach the store")
	_, ok := store.row("r1")
	assert.False(t, ok)
	assert.Equal(t, 0, e.Len())
}

func TestRemove_UnknownIdentity(t *testing.T) {
	e := newLoadedEditor(t, newMemStore())
	assert.ErrorIs(t, e.Remove(context.Background(), "nope"), ErrNotFound)
}

func TestRemove_UnresolvedCreateIsCancelled(t *testing.T) {
	store := newMemStore()
	store.createGate = make(chan struct{}) // never opened
	e := newLoadedEditor(t, store)

	c, err := e.Add(context.Background(), func() typesdb.Patch { return typesdb.Patch{"value": 0} })
	require.NoError(t, err)
	require.NoError(t, e.Remove(context.Background(), c.ID()))

	_, err = c.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := store.row(c.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, e.Len())
}

func TestRemove_ResolvedCreateGetsCompensatingDelete(t *testing.T) {
	store := newMemStore()
	e := newLoadedEditor(t, store)

	c, err := e.Add(context.Background(), func() typesdb.Patch { return typesdb.Patch{"value": 0} })
	require.NoError(t, err)
	<-c.Done()
	_, ok := store.row(c.ID())
	require.True(t, ok)

	require.NoError(t, e.Remove(context.Background(), c.ID()))
	_, ok = store.row(c.ID())
	assert.False(t, ok)
	store.mu.Lock()
	assert.Equal(t, []string{c.ID()}, store.deletes)
	store.mu.Unlock()
}

func TestRemove_FailedDeleteRestoresPosition(t *testing.T) {
	store := newMemStore()
	store.seed("a", typesdb.Patch{"value": 1})
	store.seed("b", typesdb.Patch{"value": 2})
	store.seed("c", typesdb.Patch{"value": 3})
	store.deleteErr = errors.New("locked")
	e := newLoadedEditor(t, store)

	err := e.Remove(context.Background(), "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.deleteErr)

	ids := make([]string, 0, 3)
	for _, rec := range e.Items() {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRemove_FailedDeleteKeepsPendingEdit(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	e := newLoadedEditor(t, store, WithWindow(time.Hour))

	require.NoError(t, e.Edit("r1", "value", 5))
	store.mu.Lock()
	store.deleteErr = errors.New("locked")
	store.mu.Unlock()
	require.Error(t, e.Remove(context.Background(), "r1"))

	pending, ok := e.Pending("r1")
	require.True(t, ok)
	assert.Equal(t, typesdb.Patch{"value": 5}, pending)

	require.NoError(t, e.Flush(context.Background()))
	stored, ok := store.row("r1")
	require.True(t, ok)
	assert.Equal(t, 5, stored.Fields["value"])

	rec, err := e.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Fields["value"])
}

func TestLoad_KeepsRecordWhoseCreateIsRunning(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	store.createGate = make(chan struct{})
	e := newLoadedEditor(t, store)

	c, err := e.Add(context.Background(), func() typesdb.Patch { return typesdb.Patch{"value": 9} })
	require.NoError(t, err)
	require.NoError(t, e.Load(context.Background(), typesdb.Filter{}))
	assert.Equal(t, 2, e.Len())

	close(store.createGate)
	_, err = c.Wait(context.Background())
	require.NoError(t, err)

	rec, err := e.Get(c.ID())
	require.NoError(t, err)
	assert.Equal(t, "default", rec.Fields["kind"], "reconciled with the stored row")
	require.NoError(t, e.Edit(c.ID(), "value", 10))
	require.NoError(t, e.Remove(context.Background(), c.ID()))
	_, ok := store.row(c.ID())
	assert.False(t, ok)
}

func TestLoad_DropsRecordWhoseCreateFailed(t *testing.T) {
	store := newMemStore()
	store.createGate = make(chan struct{})
	store.createErr = errors.New("constraint violated")
	e := newLoadedEditor(t, store)

	c, err := e.Add(context.Background(), nil)
	require.NoError(t, err)
	close(store.createGate)
	_, err = c.Wait(context.Background())
	require.Error(t, err)

	require.NoError(t, e.Load(context.Background(), typesdb.Filter{}))
	assert.Equal(t, 0, e.Len())
}

func TestLoad_FlushesPendingEditsFirst(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	e := New(store, WithWindow(time.Hour))
	defer e.Close(context.Background())
	require.NoError(t, e.Load(context.Background(), typesdb.Filter{}))

	require.NoError(t, e.Edit("r1", "value", 4))
	require.NoError(t, e.Load(context.Background(), typesdb.Filter{}))

	rec, err := e.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Fields["value"])
}

func TestItems_ReturnsIndependentCopies(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	e := newLoadedEditor(t, store)

	items := e.Items()
	items[0].Fields["value"] = 100

	rec, err := e.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Fields["value"])
}

func TestClose_RejectsChanges(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	e := New(store, WithWindow(10*time.Millisecond))
	require.NoError(t, e.Load(context.Background(), typesdb.Filter{}))
	require.NoError(t, e.Close(context.Background()))

	_, err := e.Add(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, e.Remove(context.Background(), "r1"), ErrClosed)
	assert.ErrorIs(t, e.Edit("r1", "value", 2), ErrClosed)

	rec, err := e.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Fields["value"], "rejected edit leaves the record alone")
}

func TestUnsubscribe(t *testing.T) {
	store := newMemStore()
	store.seed("r1", typesdb.Patch{"value": 1})
	e := newLoadedEditor(t, store)

	calls := 0
	unsubscribe := e.Subscribe(func(Change) { calls++ })
	require.NoError(t, e.Edit("r1", "value", 2))
	unsubscribe()
	unsubscribe()
	require.NoError(t, e.Edit("r1", "value", 3))

	assert.Equal(t, 1, calls)
}
