// cartstore/persist.go

package cartstore

import (
	"context"
	"sync"

	"github.com/norun9/gomarket-cart/storage"
)

type pendingWrite struct {
	ctx     context.Context
	payload string
}

// writer owns the single write slot for one storage key. At most one Set is in
// flight; a payload queued while another waits replaces it, so the key always
// ends with the newest payload.
type writer struct {
	storage storage.Storage
	key     string
	onError func(error)

	mu      sync.Mutex
	pending *pendingWrite
	busy    bool
	waiters []chan struct{}

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

func newWriter(s storage.Storage, key string, onError func(error)) *writer {
	w := &writer{
		storage: s,
		key:     key,
		onError: onError,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue does not wait for the write. The caller's context only carries values
// into the write; its cancellation does not abort it.
func (w *writer) enqueue(ctx context.Context, payload string) {
	w.mu.Lock()
	w.pending = &pendingWrite{ctx: context.WithoutCancel(ctx), payload: payload}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// flush blocks until every payload enqueued before the call has been written or superseded.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	if w.pending == nil && !w.busy {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the writer once the in-flight write returns. If ctx ends first the
// goroutine is left to finish that write on its own.
func (w *writer) close(ctx context.Context) error {
	close(w.stop)
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		next := w.pending
		w.pending = nil
		if next == nil {
			w.busy = false
			waiters := w.waiters
			w.waiters = nil
			w.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
			return
		}
		w.busy = true
		w.mu.Unlock()

		if err := w.storage.Set(next.ctx, w.key, next.payload); err != nil {
			w.onError(err)
		}
	}
}
