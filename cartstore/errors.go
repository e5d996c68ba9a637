// cartstore/errors.go

package cartstore

import "github.com/pkg/errors"

var (
	// ErrItemNotFound is returned by Increment and Decrement for an id that is not in the cart.
	ErrItemNotFound = errors.New("cartstore: item not in cart")

	// ErrCorruptPayload is returned by Initialize when the stored value cannot be decoded.
	ErrCorruptPayload = errors.New("cartstore: corrupt stored payload")

	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("cartstore: already initialized")

	// ErrClosed is returned by mutations on a closed store.
	ErrClosed = errors.New("cartstore: store closed")

	// ErrNoStoreInScope is the panic value of FromContext when no store was installed.
	ErrNoStoreInScope = errors.New("cartstore: FromContext must be used within a context carrying a Store")
)
