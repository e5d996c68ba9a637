// storage/storage.go

package storage

import (
	"context"
)

// Storage is the key-value collaborator the cart store persists to.
// Values are opaque strings; Get reports ok=false when the key was never written.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error

	Ping(ctx context.Context) bool
}
