// cartstore/context.go

package cartstore

import "context"

type storeKey struct{}

// NewContext returns a copy of ctx carrying s. Code running under the returned
// context can reach the store with FromContext.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// Lookup returns the store carried by ctx, if any.
func Lookup(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok && s != nil
}

// FromContext returns the store carried by ctx. It panics with ErrNoStoreInScope
// when ctx was not derived from NewContext; that is a wiring bug, not a runtime condition.
func FromContext(ctx context.Context) *Store {
	s, ok := Lookup(ctx)
	if !ok {
		panic(ErrNoStoreInScope)
	}
	return s
}
