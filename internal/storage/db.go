// Package storage provides the node's key-value persistence: one DB
// interface, a Badger-backed implementation for real nodes, and an
// in-memory one for tests. The chain store, the peer store, and the
// ban store all share a single DB, partitioned by key prefix.
package storage

import "errors"

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("storage: key not found")

// DB is a minimal key-value store.
type DB interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach visits every key with the given prefix. Returning a
	// non-nil error from fn stops the iteration and is propagated.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
