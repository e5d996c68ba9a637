// storage/local_storage.go

package storage

import (
	"context"
	"sync"
)

// LocalStorage keeps values in process memory. It is used when no Redis
// address is configured and by tests.
type LocalStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewLocalStorage constructor
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		values: make(map[string]string),
	}
}

// Get returns the value stored under key.
func (l *LocalStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, ok := l.values[key]
	return v, ok, nil
}

// Set overwrites the value stored under key.
func (l *LocalStorage) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.values[key] = value
	return nil
}

// Ping always returns true.
func (l *LocalStorage) Ping(ctx context.Context) bool {
	return true
}
