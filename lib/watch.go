package lib

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

/*
	Watch is a single-writer, multiple-reader observable cell.

	Readers call Borrow() to obtain the latest value without blocking the writer or each other. The writer
	calls SendIfModified() with a function that edits a copy of the value and reports whether it changed;
	the copy is published only when it reports true, so readers never observe a partial edit.
	Subscribers receive every published value in order.
*/

type watchValue[T any] struct {
	value   T
	version uint64
}

// Watch is the observable cell
type Watch[T any] struct {
	current     atomic.Pointer[watchValue[T]]         // the latest published value
	writer      sync.Mutex                            // serializes writers
	subscribers *xsync.Map[uint64, *WatchReceiver[T]] // id -> receiver
	nextID      atomic.Uint64                         // subscriber id sequence
}

// NewWatch() creates a watch holding the initial value at version 0
func NewWatch[T any](initial T) *Watch[T] {
	w := &Watch[T]{subscribers: xsync.NewMap[uint64, *WatchReceiver[T]]()}
	w.current.Store(&watchValue[T]{value: initial})
	return w
}

// Borrow() returns a copy of the latest value
func (w *Watch[T]) Borrow() T { return w.current.Load().value }

// Version() returns the number of values published since creation
func (w *Watch[T]) Version() uint64 { return w.current.Load().version }

// SendIfModified() applies modify to a copy of the value and publishes the copy if modify returns true
func (w *Watch[T]) SendIfModified(modify func(value *T) bool) bool {
	w.writer.Lock()
	defer w.writer.Unlock()
	latest := w.current.Load()
	next := latest.value
	if !modify(&next) {
		return false
	}
	published := &watchValue[T]{value: next, version: latest.version + 1}
	w.current.Store(published)
	// fan out while holding the writer lock so every subscriber sees the same order
	w.subscribers.Range(func(_ uint64, r *WatchReceiver[T]) bool {
		r.push(published.value)
		return true
	})
	return true
}

// Send() unconditionally publishes a new value
func (w *Watch[T]) Send(value T) {
	w.SendIfModified(func(v *T) bool { *v = value; return true })
}

// Subscribe() returns a receiver of every value published after this call
func (w *Watch[T]) Subscribe() *WatchReceiver[T] {
	r := &WatchReceiver[T]{
		id:     w.nextID.Add(1),
		watch:  w,
		notify: make(chan struct{}, 1),
	}
	w.subscribers.Store(r.id, r)
	return r
}

// ReceiverCount() returns the number of open subscriptions
func (w *Watch[T]) ReceiverCount() int { return w.subscribers.Size() }

// WatchReceiver is a subscription to a Watch
type WatchReceiver[T any] struct {
	id      uint64
	watch   *Watch[T]
	mu      sync.Mutex
	pending []T
	notify  chan struct{}
	closed  bool
}

// Latest() returns the latest value of the watch without waiting
func (r *WatchReceiver[T]) Latest() T { return r.watch.Borrow() }

// Next() returns the oldest value not yet received, waiting for one to be published if necessary
func (r *WatchReceiver[T]) Next(ctx context.Context) (value T, err error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return value, ErrWatchClosed()
		}
		if len(r.pending) != 0 {
			value = r.pending[0]
			var zero T
			r.pending[0] = zero
			r.pending = r.pending[1:]
			r.mu.Unlock()
			return value, nil
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return value, ctx.Err()
		case <-r.notify:
		}
	}
}

// Close() ends the subscription
func (r *WatchReceiver[T]) Close() {
	r.watch.subscribers.Delete(r.id)
	r.mu.Lock()
	r.closed, r.pending = true, nil
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// push() queues a published value and wakes a waiting Next()
func (r *WatchReceiver[T]) push(value T) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.pending = append(r.pending, value)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}
