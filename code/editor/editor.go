// Package editor keeps an ordered in-memory list of records in step with a
// store. Edits apply to the list at once and reach the store through a
// per-record debounced write; adds and removes hit the store immediately.
//
// Rollback policy: a failed create removes the optimistic record again, and a
// failed delete puts the record back at its old position. Both are announced
// to subscribers as ChangeRolledBack. Failed debounced writes are not rolled
// back; they go to the observer and the log, and the next Load reconciles.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Voltaic314/GameLedger/code/debounce"
	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned for identities that are not in the list.
var ErrNotFound = typesdb.ErrNotFound

// ErrClosed is returned by Edit, Add and Remove after Close.
var ErrClosed = errors.New("editor: closed")

// Store is the persisted side of the list.
type Store interface {
	Create(ctx context.Context, rec typesdb.Record) (typesdb.Record, error)
	Update(ctx context.Context, id string, patch typesdb.Patch) error
	Delete(ctx context.Context, id string) error
	FindAll(ctx context.Context, filter typesdb.Filter) ([]typesdb.Record, error)
}

// fieldChecker is implemented by stores that can validate an edit before it is
// applied, so bad fields fail in Edit instead of in a background write.
type fieldChecker interface {
	Coerce(field string, value any) (any, error)
}

// ListEditor owns one ordered collection of records.
type ListEditor struct {
	mu        sync.Mutex
	store     Store
	checker   fieldChecker
	mutator   *debounce.Mutator[string]
	logger    *zap.Logger
	newID     func() string
	items     []typesdb.Record
	creations map[string]*Creation
	closed    bool

	subs subscribers
}

// Option configures a ListEditor.
type Option func(*config)

type config struct {
	window       time.Duration
	writeTimeout time.Duration
	observer     debounce.Observer[string]
	logger       *zap.Logger
	newID        func() string
}

// WithWindow sets the debounce window for edits.
func WithWindow(d time.Duration) Option {
	return func(c *config) { c.window = d }
}

// WithWriteTimeout bounds each debounced write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { c.writeTimeout = d }
}

// WithObserver receives the outcome of every debounced write.
func WithObserver(obs debounce.Observer[string]) Option {
	return func(c *config) { c.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDFunc replaces the identity allocator used by Add.
func WithIDFunc(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New returns an empty editor over store. Call Load to fill it.
func New(store Store, opts ...Option) *ListEditor {
	cfg := config{
		window:       debounce.DefaultWindow,
		writeTimeout: debounce.DefaultWriteTimeout,
		logger:       zap.NewNop(),
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &ListEditor{
		store:     store,
		logger:    cfg.logger,
		newID:     cfg.newID,
		creations: make(map[string]*Creation),
	}
	if fc, ok := store.(fieldChecker); ok {
		e.checker = fc
	}

	mopts := []debounce.Option{
		debounce.WithWindow(cfg.window),
		debounce.WithWriteTimeout(cfg.writeTimeout),
		debounce.WithLogger(cfg.logger.Named("debounce")),
	}
	if cfg.observer != nil {
		mopts = append(mopts, debounce.WithObserver(cfg.observer))
	}
	e.mutator = debounce.New[string](e.persist, mopts...)
	return e
}

// Subscribe registers fn for change notifications and returns a func that
// unregisters it. fn runs on the goroutine that made the change, after the
// change is visible through Items.
func (e *ListEditor) Subscribe(fn func(Change)) (unsubscribe func()) {
	return e.subs.add(fn)
}

// Load replaces the collection with the store's records. Pending edits are
// flushed first so the reload sees them. Records added while their create was
// still running stay in the list even when the store did not return them.
func (e *ListEditor) Load(ctx context.Context, filter typesdb.Filter) error {
	if err := e.mutator.Flush(ctx); err != nil {
		return fmt.Errorf("flush before load: %w", err)
	}

	e.mu.Lock()
	creating := make(map[string]struct{}, len(e.creations))
	for id := range e.creations {
		creating[id] = struct{}{}
	}
	e.mu.Unlock()

	recs, err := e.store.FindAll(ctx, filter)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	e.mu.Lock()
	for id := range e.creations {
		creating[id] = struct{}{}
	}
	for _, rec := range e.items {
		if _, ok := creating[rec.ID]; !ok {
			continue
		}
		if !slices.ContainsFunc(recs, func(r typesdb.Record) bool { return r.ID == rec.ID }) {
			recs = append(recs, rec)
		}
	}
	e.items = recs
	e.mu.Unlock()

	e.subs.notify(Change{Kind: ChangeReloaded})
	return nil
}

// Items returns a snapshot of the collection in order.
func (e *ListEditor) Items() []typesdb.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]typesdb.Record, len(e.items))
	for i, rec := range e.items {
		out[i] = rec.Clone()
	}
	return out
}

// Len returns the number of records in the collection.
func (e *ListEditor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Get returns a copy of the record with id.
func (e *ListEditor) Get(id string) (typesdb.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return typesdb.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.items[idx].Clone(), nil
}

// Pending returns the edits for id that have not been written yet.
func (e *ListEditor) Pending(id string) (typesdb.Patch, bool) {
	return e.mutator.Pending(id)
}

// Edit sets one field of the record in memory and schedules the debounced
// write. The in-memory change is visible before Edit returns; store failures
// are never returned here.
func (e *ListEditor) Edit(id, field string, value any) error {
	return e.EditFields(id, typesdb.Patch{field: value})
}

// EditFields is Edit for several fields at once.
func (e *ListEditor) EditFields(id string, patch typesdb.Patch) error {
	if len(patch) == 0 {
		return nil
	}
	patch, err := e.check(patch)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.items[idx].Fields == nil {
		e.items[idx].Fields = make(typesdb.Patch, len(patch))
	}
	e.items[idx].Fields.Merge(patch)
	snapshot := e.items[idx].Clone()
	e.mu.Unlock()

	e.mutator.Schedule(id, patch)
	e.subs.notify(Change{Kind: ChangeEdited, ID: id, Fields: patch.Fields(), Record: snapshot})
	return nil
}

// Add appends a record built by factory under a fresh identity and starts the
// create in the background. The returned Creation resolves with the stored
// record, or with the create error after the append has been rolled back.
func (e *ListEditor) Add(ctx context.Context, factory func() typesdb.Patch) (*Creation, error) {
	var fields typesdb.Patch
	if factory != nil {
		fields = factory()
	}
	fields, err := e.check(fields)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	id := e.newID()
	if e.indexLocked(id) >= 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("editor: identity %s already in use", id)
	}
	rec := typesdb.Record{ID: id, Fields: fields}
	createCtx, cancel := context.WithCancel(ctx)
	c := &Creation{id: id, cancel: cancel, done: make(chan struct{})}
	e.items = append(e.items, rec.Clone())
	e.creations[id] = c
	e.mu.Unlock()

	e.subs.notify(Change{Kind: ChangeAdded, ID: id, Fields: fields.Fields(), Record: rec.Clone()})
	go e.create(createCtx, c, rec)
	return c, nil
}

func (e *ListEditor) create(ctx context.Context, c *Creation, rec typesdb.Record) {
	stored, err := e.store.Create(ctx, rec)
	c.cancel()

	e.mu.Lock()
	delete(e.creations, c.id)
	idx := e.indexLocked(c.id)
	var change Change
	if err != nil {
		c.err = fmt.Errorf("create %s: %w", c.id, err)
		if idx >= 0 {
			change = Change{Kind: ChangeRolledBack, ID: c.id, Record: e.items[idx].Clone(), Err: c.err}
			e.items = slices.Delete(e.items, idx, idx+1)
		}
	} else {
		c.rec = stored.Clone()
		if idx >= 0 {
			// edits made while the create was in flight win over stored defaults
			merged := stored.Clone()
			merged.Fields.Merge(e.items[idx].Fields)
			e.items[idx] = merged
			change = Change{Kind: ChangeReconciled, ID: c.id, Record: merged.Clone()}
		}
	}
	e.mu.Unlock()
	close(c.done)

	if err != nil {
		e.logger.Warn("create failed, optimistic add rolled back", zap.String("id", c.id), zap.Error(err))
		// nothing to update any more
		e.mutator.Cancel(context.Background(), c.id)
	}
	if change.ID != "" {
		e.subs.notify(change)
	}
}

// Remove takes the record out of the list, drops its pending debounced write
// and deletes it from the store. If the record's create is still running it
// is cancelled; if the create already landed the row is deleted. A failed
// delete puts the record back with its unwritten edits rescheduled and is
// returned.
func (e *ListEditor) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := e.items[idx]
	e.items = slices.Delete(e.items, idx, idx+1)
	c := e.creations[id]
	e.mu.Unlock()

	e.subs.notify(Change{Kind: ChangeRemoved, ID: id, Record: removed.Clone()})

	createFailed := false
	if c != nil {
		c.cancel()
		select {
		case <-c.done:
		case <-ctx.Done():
			e.restore(idx, removed, ctx.Err())
			return fmt.Errorf("remove %s: waiting for create: %w", id, ctx.Err())
		}
		createFailed = c.err != nil
	}

	pending, hasPending := e.mutator.Pending(id)
	e.mutator.Cancel(ctx, id)

	err := e.store.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, typesdb.ErrNotFound):
		// never stored, or already gone: the store matches the list
		e.logger.Debug("remove of record absent from store", zap.String("id", id), zap.Bool("create_failed", createFailed))
		return nil
	default:
		e.logger.Warn("delete failed, record restored", zap.String("id", id), zap.Error(err))
		e.restore(idx, removed, err)
		if hasPending {
			e.mutator.Schedule(id, pending)
		}
		return fmt.Errorf("remove %s: %w", id, err)
	}
}

// restore puts a record back after a failed delete, as close to its old
// position as the list still allows.
func (e *ListEditor) restore(idx int, rec typesdb.Record, cause error) {
	e.mu.Lock()
	if e.indexLocked(rec.ID) >= 0 {
		e.mu.Unlock()
		return
	}
	if idx > len(e.items) {
		idx = len(e.items)
	}
	e.items = slices.Insert(e.items, idx, rec)
	e.mu.Unlock()

	e.subs.notify(Change{Kind: ChangeRolledBack, ID: rec.ID, Record: rec.Clone(), Err: cause})
}

// Window returns the debounce window of edits.
func (e *ListEditor) Window() time.Duration {
	return e.mutator.Window()
}

// Flush writes every pending edit now.
func (e *ListEditor) Flush(ctx context.Context) error {
	return e.mutator.Flush(ctx)
}

// Close waits for in-flight creates, flushes pending edits and refuses
// further changes.
func (e *ListEditor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	waits := make([]*Creation, 0, len(e.creations))
	for _, c := range e.creations {
		waits = append(waits, c)
	}
	e.mu.Unlock()

	for _, c := range waits {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return e.mutator.Close(ctx)
}

// persist is the debounced write. Edits to a record whose create is still in
// flight wait for it, so the update never races ahead of the insert.
func (e *ListEditor) persist(ctx context.Context, id string, patch typesdb.Patch) error {
	e.mu.Lock()
	c := e.creations[id]
	e.mu.Unlock()

	if c != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if c.err != nil {
			return fmt.Errorf("record %s was never stored: %w", id, c.err)
		}
	}
	return e.store.Update(ctx, id, patch)
}

func (e *ListEditor) check(patch typesdb.Patch) (typesdb.Patch, error) {
	out := patch.Clone()
	if e.checker == nil {
		return out, nil
	}
	for field, value := range patch {
		v, err := e.checker.Coerce(field, value)
		if err != nil {
			return nil, err
		}
		out[field] = v
	}
	return out, nil
}

func (e *ListEditor) indexLocked(id string) int {
	return slices.IndexFunc(e.items, func(r typesdb.Record) bool { return r.ID == id })
}
