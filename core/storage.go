package core

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

// Storage is a durable string key-value store local to one client (the browser's local storage).
type Storage interface {
	// Get returns ErrKeyNotFound if key is not set.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove is a no-op for missing keys.
	Remove(ctx context.Context, key string) error
}
