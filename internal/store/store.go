// Package store keeps the last observed snapshot of every monitored entity.
package store

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/plado/internal/event"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Key identifies one entity as seen by one event definition. Scope is the
// definition name, so two definitions watching the same entity keep
// independent histories.
type Key struct {
	Scope    string
	Kind     event.Kind
	EntityID string
}

// Store holds one snapshot per key. Reads and writes to the same key are
// serialized; different keys proceed independently. Put replaces the whole
// snapshot.
type Store interface {
	Get(ctx context.Context, key Key) (*event.Snapshot, error)
	Put(ctx context.Context, key Key, snap event.Snapshot) error
	List(ctx context.Context, scope string) ([]event.Snapshot, error)
	Close() error
}

// KeyOf builds the key a definition uses for a snapshot.
func KeyOf(scope string, s event.Snapshot) Key {
	return Key{Scope: scope, Kind: s.Kind, EntityID: s.EntityID}
}
