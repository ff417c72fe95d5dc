// Package s4store defines the backing-store boundary S4 writes records
// through: a CAS-capable key/value store holding opaque JSON blobs. The
// site manager is the only consumer of this interface; it never assumes
// anything about how a Store is implemented.
package s4store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("s4store: not found")

// ErrCASContention is returned by Set when the supplied cas does not
// match the value currently stored under the key (or the key already
// exists when cas=0 was supplied as "only if absent").
var ErrCASContention = errors.New("s4store: cas contention")

// Store is the CAS-capable key/value boundary. Implementations must
// treat cas=0 on Set as "write only if the key is currently absent" —
// the site manager's PUT path depends on this to implement
// write-only-if-absent without a preceding read.
type Store interface {
	// Get returns the current value and its CAS token. Returns
	// ErrNotFound if the key is absent. Any other non-nil error is a
	// transport/backend failure (spec's StoreError).
	Get(ctx context.Context, key string) (data []byte, cas uint64, err error)

	// Set writes data under key, succeeding only if the store's current
	// CAS for key equals cas (or the key is absent and cas is 0).
	// Returns the new CAS on success, ErrCASContention on a version
	// mismatch, or a transport/backend error otherwise. ttl bounds how
	// long the store retains the value in the absence of further writes.
	Set(ctx context.Context, key string, data []byte, cas uint64, ttl time.Duration) (newCAS uint64, err error)
}
