package cartstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// gatedStorage blocks every Set until release is closed and records the values written.
type gatedStorage struct {
	started chan string
	release chan struct{}

	mu   sync.Mutex
	sets []string
}

func (g *gatedStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (g *gatedStorage) Set(ctx context.Context, key, value string) error {
	g.started <- value
	<-g.release
	g.mu.Lock()
	g.sets = append(g.sets, value)
	g.mu.Unlock()
	return nil
}

func (g *gatedStorage) Ping(ctx context.Context) bool { return true }

func TestWriter_CoalescesWhileBusy(t *testing.T) {
	st := &gatedStorage{started: make(chan string, 10), release: make(chan struct{})}
	w := newWriter(st, DefaultKey, func(err error) { t.Errorf("unexpected write error: %v", err) })
	defer w.close(context.Background())

	ctx := context.Background()
	w.enqueue(ctx, "a")
	select {
	case <-st.started:
	case <-time.After(time.Second):
		t.Fatal("first write never started")
	}

	// "a" is in flight; "b" is replaced by "c" before it starts.
	w.enqueue(ctx, "b")
	w.enqueue(ctx, "c")
	close(st.release)

	flushCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.flush(flushCtx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if diff := cmp.Diff([]string{"a", "c"}, st.sets); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestWriter_FlushHonoursContext(t *testing.T) {
	st := &gatedStorage{started: make(chan string, 10), release: make(chan struct{})}
	w := newWriter(st, DefaultKey, func(error) {})

	w.enqueue(context.Background(), "a")
	<-st.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.flush(ctx); err != context.DeadlineExceeded {
		t.Errorf("flush = %v, want DeadlineExceeded", err)
	}

	close(st.release)
	w.close(context.Background())
}

func TestWriter_WriteOutlivesCallerContext(t *testing.T) {
	st := &gatedStorage{started: make(chan string, 10), release: make(chan struct{})}
	close(st.release)
	w := newWriter(st, DefaultKey, func(err error) { t.Errorf("unexpected write error: %v", err) })
	defer w.close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	w.enqueue(ctx, "a")
	cancel()

	if err := w.flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.sets) != 1 {
		t.Errorf("writes = %v, want one", st.sets)
	}
}

func TestWriter_FlushIdle(t *testing.T) {
	st := &gatedStorage{started: make(chan string, 1), release: make(chan struct{})}
	w := newWriter(st, DefaultKey, func(error) {})
	defer w.close(context.Background())

	if err := w.flush(context.Background()); err != nil {
		t.Errorf("flush on idle writer = %v", err)
	}
}

func TestStore_CloseGivesUpOnStalledStorage(t *testing.T) {
	st := &gatedStorage{started: make(chan string, 10), release: make(chan struct{})}
	t.Cleanup(func() { close(st.release) })
	s := New(st, WithErrorHandler(func(error) {}))

	if _, err := s.AddToCart(context.Background(), Product{ID: "1"}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-st.started:
	case <-time.After(time.Second):
		t.Fatal("write never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Close(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Close = %v, want DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close ignored its deadline while a write was stuck")
	}
}
