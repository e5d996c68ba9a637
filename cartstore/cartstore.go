// cartstore/cartstore.go

package cartstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/norun9/gomarket-cart/storage"
)

// DefaultKey is the storage key the cart is persisted under.
const DefaultKey = "@GoMarket:product"

// Store holds the cart for the running session and mirrors every mutation to
// storage. Only the store mutates its list; readers get copies.
type Store struct {
	storage storage.Storage
	key     string
	mode    PersistMode
	log     logrus.FieldLogger
	onError func(error)

	mu          sync.Mutex
	products    []LineItem
	initialized bool
	closed      bool
	subs        map[int]chan []LineItem
	nextSub     int

	writer *writer

	mutations       metric.Int64Counter
	persistFailures metric.Int64Counter
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithPersistMode selects what mutations write. The default is PersistMutation.
func WithPersistMode(mode PersistMode) Option {
	return func(s *Store) { s.mode = mode }
}

// WithLogger sets the logger used for persist failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// WithErrorHandler receives every failed background write instead of the logger.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Store) { s.onError = fn }
}

// New returns an empty store. Call Initialize once to load the persisted cart.
func New(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage:  st,
		key:      DefaultKey,
		mode:     PersistMutation,
		log:      logrus.StandardLogger(),
		products: []LineItem{},
		subs:     make(map[int]chan []LineItem),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "cartstore")

	meter := otel.Meter("cartstore")
	var err error
	if s.mutations, err = meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations applied, by operation")); err != nil {
		s.log.WithError(err).Warn("failed to create mutations counter")
	}
	if s.persistFailures, err = meter.Int64Counter("cart.persist.failures",
		metric.WithDescription("Background cart writes that failed")); err != nil {
		s.log.WithError(err).Warn("failed to create persist failure counter")
	}

	s.writer = newWriter(st, s.key, s.persistFailed)
	return s
}

// Initialize loads the persisted cart and replaces the current list with it.
// An absent key leaves the cart empty.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.mu.Unlock()

	payload, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	if !ok {
		return nil
	}
	items, err := decode(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(items)
	return nil
}

// Products returns a copy of the current cart.
func (s *Store) Products() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.products)
}

// AddToCart adds one unit of p and returns the cart as committed by this call.
// If p.ID is already in the cart only its quantity changes; the title, image and
// price of the first add are kept.
func (s *Store) AddToCart(ctx context.Context, p Product) ([]LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	next := clone(s.products)
	if i := indexOf(next, p.ID); i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, p.lineItem(1))
	}
	s.commit(next)
	s.count(ctx, "add")

	// The candidate, not the merged item, is what gets written.
	s.persist(ctx, p)
	return clone(next), nil
}

// Increment adds one unit to the item with the given id and returns the committed cart.
func (s *Store) Increment(ctx context.Context, id string) ([]LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	i := indexOf(s.products, id)
	if i < 0 {
		return nil, errors.Wrapf(ErrItemNotFound, "increment %q", id)
	}
	next := clone(s.products)
	next[i].Quantity++
	s.commit(next)
	s.count(ctx, "increment")
	s.persist(ctx, next[i])
	return clone(next), nil
}

// Decrement removes one unit from the item with the given id. An item at zero
// stays at zero and stays in the cart; the unchanged list is still published.
func (s *Store) Decrement(ctx context.Context, id string) ([]LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	i := indexOf(s.products, id)
	if i < 0 {
		return nil, errors.Wrapf(ErrItemNotFound, "decrement %q", id)
	}
	next := clone(s.products)
	if next[i].Quantity <= 0 {
		s.commit(next)
		return clone(next), nil
	}
	next[i].Quantity--
	s.commit(next)
	s.count(ctx, "decrement")
	s.persist(ctx, next[i])
	return clone(next), nil
}

// Subscribe returns a channel that receives the current cart immediately and
// again after every change. Only the newest snapshot is buffered, so a slow
// reader skips intermediate states. cancel releases the subscription.
func (s *Store) Subscribe() (updates <-chan []LineItem, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []LineItem, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- clone(s.products)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// Flush waits for pending writes to reach storage.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close rejects further mutations, writes what is pending and ends all subscriptions.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	if err := s.writer.flush(ctx); err != nil {
		// ctx is already done, so this returns without waiting on a stalled write.
		s.writer.close(ctx)
		return errors.Wrap(err, "flush pending cart writes")
	}
	return s.writer.close(ctx)
}

// commit replaces the list and publishes it. Callers hold s.mu.
func (s *Store) commit(next []LineItem) {
	s.products = next
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- clone(next)
	}
}

// persist queues the payload for the current mutation. Callers hold s.mu, which
// keeps queue order equal to commit order.
func (s *Store) persist(ctx context.Context, mutationInput any) {
	var v any = mutationInput
	if s.mode == PersistSnapshot {
		v = s.products
	}
	payload, err := encode(v)
	if err != nil {
		s.persistFailed(err)
		return
	}
	s.writer.enqueue(ctx, payload)
}

func (s *Store) persistFailed(err error) {
	if s.persistFailures != nil {
		s.persistFailures.Add(context.Background(), 1)
	}
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.log.WithError(err).WithField("key", s.key).Warn("failed to persist cart")
}

func (s *Store) count(ctx context.Context, op string) {
	if s.mutations == nil {
		return
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
