package storage

import (
	"context"
	"fmt"

	"github.com/fintra/credvault/logger"
)

// Backend persists the token table snapshot. The token store serializes the
// whole table after every mutation and hands the bytes here; a backend only
// needs to store and return one opaque blob durably.
type Backend interface {
	// Load returns the last stored snapshot, or nil when none exists.
	Load(ctx context.Context) ([]byte, error)

	// Store durably replaces the snapshot.
	Store(ctx context.Context, data []byte) error

	// Wipe removes the snapshot entirely.
	Wipe(ctx context.Context) error

	// Name identifies the backend type in logs.
	Name() string
}

// Factory is the factory function to create a backend.
type Factory func(config map[string]string, log logger.Logger) (Backend, error)

var builtinBackends = map[string]Factory{
	"inmem": NewMemoryBackend,
	"file":  NewFileBackend,
}

// NewBackend creates a backend of the given type from its configuration map.
func NewBackend(kind string, config map[string]string, log logger.Logger) (Backend, error) {
	factory, ok := builtinBackends[kind]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend type %q", kind)
	}
	return factory(config, log)
}
