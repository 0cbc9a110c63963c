// Package debounce coalesces rapid writes to the same key into one trailing
// write. Every key owns its own timer, so a burst of edits on one record never
// holds back the flush of another.
package debounce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
	"go.uber.org/zap"
)

// DefaultWindow is the debounce window used when none is configured.
const DefaultWindow = 250 * time.Millisecond

// DefaultWriteTimeout bounds a single flushed write.
const DefaultWriteTimeout = 10 * time.Second

// ErrClosed is reported to the observer for schedules made after Close.
var ErrClosed = errors.New("debounce: mutator closed")

// WriteFunc persists a merged patch for key.
type WriteFunc[K comparable] func(ctx context.Context, key K, patch typesdb.Patch) error

// Observer receives the outcome of every flushed write. Callbacks run on the
// flushing goroutine and must not call back into the Mutator synchronously
// with blocking operations such as Flush or Cancel.
type Observer[K comparable] interface {
	WriteFlushed(key K, patch typesdb.Patch)
	WriteFailed(key K, patch typesdb.Patch, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil funcs are skipped.
type ObserverFuncs[K comparable] struct {
	OnFlushed func(key K, patch typesdb.Patch)
	OnFailed  func(key K, patch typesdb.Patch, err error)
}

func (o ObserverFuncs[K]) WriteFlushed(key K, patch typesdb.Patch) {
	if o.OnFlushed != nil {
		o.OnFlushed(key, patch)
	}
}

func (o ObserverFuncs[K]) WriteFailed(key K, patch typesdb.Patch, err error) {
	if o.OnFailed != nil {
		o.OnFailed(key, patch, err)
	}
}

// entry is the per-key state. A key is Pending while patch is non-nil and
// Flushing while a write for it is running; both can hold at once.
type entry struct {
	patch    typesdb.Patch
	timer    *time.Timer
	gen      uint64        // reassigned on every schedule and cancel; stale timer fires compare against it
	flushing bool          // a write for this key is in flight
	due      bool          // the window elapsed while flushing; flush again once the write returns
	done     chan struct{} // closed when the in-flight write returns
}

// Mutator wraps a WriteFunc with per-key trailing debounce. Only the Mutator
// reads or writes its pending map.
type Mutator[K comparable] struct {
	mu       sync.Mutex
	write    WriteFunc[K]
	window   time.Duration
	timeout  time.Duration
	observer Observer[K]
	logger   *zap.Logger
	pending  map[K]*entry
	seq      uint64 // source of entry generations, unique across the Mutator's lifetime
	closed   bool
}

// Option configures a Mutator.
type Option func(*options)

type options struct {
	window  time.Duration
	timeout time.Duration
	logger  *zap.Logger
	// observer is stored untyped so Option does not need a type parameter
	observer any
}

// WithWindow sets the debounce window. Non-positive values keep the default.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithWriteTimeout bounds each flushed write. Zero disables the bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger used for flush failures and dropped schedules.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver routes write outcomes to obs. obs must implement Observer[K]
// for the Mutator's key type, otherwise it is ignored.
func WithObserver(obs any) Option {
	return func(o *options) { o.observer = obs }
}

// New returns a Mutator that flushes through write.
func New[K comparable](write WriteFunc[K], opts ...Option) *Mutator[K] {
	o := options{
		window:  DefaultWindow,
		timeout: DefaultWriteTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Mutator[K]{
		write:   write,
		window:  o.window,
		timeout: o.timeout,
		logger:  o.logger,
		pending: make(map[K]*entry),
	}
	if obs, ok := o.observer.(Observer[K]); ok {
		m.observer = obs
	} else if o.observer != nil {
		m.logger.Warn("observer ignored, key type mismatch", zap.String("observer", fmt.Sprintf("%T", o.observer)))
	}
	return m
}

// Window returns the configured debounce window.
func (m *Mutator[K]) Window() time.Duration {
	return m.window
}

// Schedule records patch for key and (re)starts the key's timer. Patches for
// the same key inside one window merge field by field, last write wins.
// Schedule never blocks on the store and never fails; after Close the patch is
// dropped and reported as ErrClosed.
func (m *Mutator[K]) Schedule(key K, patch typesdb.Patch) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Warn("schedule after close dropped", zap.Any("key", key), zap.Strings("fields", patch.Fields()))
		m.reportFailure(key, patch, ErrClosed)
		return
	}

	e, ok := m.pending[key]
	if !ok {
		e = &entry{}
		m.pending[key] = e
	}
	if e.patch == nil {
		e.patch = patch.Clone()
	} else {
		e.patch.Merge(patch)
	}
	m.seq++
	e.gen = m.seq
	e.due = false
	if e.timer != nil {
		e.timer.Stop()
	}
	gen := e.gen
	e.timer = time.AfterFunc(m.window, func() { m.fire(key, gen) })
	m.mu.Unlock()
}

// Pending returns a copy of the patch waiting to be flushed for key.
func (m *Mutator[K]) Pending(key K) (typesdb.Patch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[key]
	if !ok || e.patch == nil {
		return nil, false
	}
	return e.patch.Clone(), true
}

// Len returns the number of keys with a pending patch.
func (m *Mutator[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.pending {
		if e.patch != nil {
			n++
		}
	}
	return n
}

// Cancel discards the pending patch for key and stops its timer. If a write
// for key is already in flight, Cancel waits for it to return (or ctx to end)
// so that whatever the caller does next is ordered after it. It reports
// whether a pending patch was discarded.
func (m *Mutator[K]) Cancel(ctx context.Context, key K) bool {
	m.mu.Lock()
	e, ok := m.pending[key]
	if !ok {
		m.mu.Unlock()
		return false
	}
	discarded := e.patch != nil
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.patch = nil
	e.due = false
	m.seq++
	e.gen = m.seq
	done := e.done
	if !e.flushing {
		delete(m.pending, key)
	}
	m.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	if discarded {
		m.logger.Debug("pending write cancelled", zap.Any("key", key))
	}
	return discarded
}

// Flush writes every pending patch now instead of waiting for its window and
// blocks until no key is pending or flushing, or ctx ends.
func (m *Mutator[K]) Flush(ctx context.Context) error {
	for {
		m.mu.Lock()
		waiters := make([]chan struct{}, 0, len(m.pending))
		for key, e := range m.pending {
			if e.timer != nil {
				e.timer.Stop()
				e.timer = nil
			}
			if e.patch != nil {
				if e.flushing {
					e.due = true
				} else {
					m.startFlushLocked(key, e)
				}
			}
			if e.done != nil {
				waiters = append(waiters, e.done)
			}
		}
		m.mu.Unlock()

		if len(waiters) == 0 {
			return nil
		}
		for _, done := range waiters {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close flushes everything pending and refuses later schedules.
func (m *Mutator[K]) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Flush(ctx)
}

func (m *Mutator[K]) fire(key K, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pending[key]
	if !ok || e.gen != gen || e.patch == nil {
		return
	}
	e.timer = nil
	if e.flushing {
		e.due = true
		return
	}
	m.startFlushLocked(key, e)
}

// startFlushLocked hands the pending patch to a new write goroutine.
// m.mu must be held.
func (m *Mutator[K]) startFlushLocked(key K, e *entry) {
	patch := e.patch
	e.patch = nil
	e.due = false
	e.flushing = true
	e.done = make(chan struct{})
	go m.run(key, e, patch)
}

func (m *Mutator[K]) run(key K, e *entry, patch typesdb.Patch) {
	err := m.invoke(key, patch)
	if err != nil {
		m.logger.Warn("debounced write failed",
			zap.Any("key", key),
			zap.Strings("fields", patch.Fields()),
			zap.Error(err))
		m.reportFailure(key, patch, err)
	} else {
		m.logger.Debug("debounced write flushed", zap.Any("key", key), zap.Strings("fields", patch.Fields()))
		if m.observer != nil {
			m.observer.WriteFlushed(key, patch)
		}
	}

	m.mu.Lock()
	close(e.done)
	e.done = nil
	e.flushing = false
	switch {
	case e.due && e.patch != nil:
		m.startFlushLocked(key, e)
	case e.patch == nil && e.timer == nil:
		if cur, ok := m.pending[key]; ok && cur == e {
			delete(m.pending, key)
		}
	}
	m.mu.Unlock()
}

// invoke calls the write func, turning a panic into an error so a bad store
// cannot take down the process from a timer goroutine.
func (m *Mutator[K]) invoke(key K, patch typesdb.Patch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("debounce: write panicked: %v", r)
		}
	}()

	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return m.write(ctx, key, patch)
}

func (m *Mutator[K]) reportFailure(key K, patch typesdb.Patch, err error) {
	if m.observer != nil {
		m.observer.WriteFailed(key, patch, err)
	}
}
