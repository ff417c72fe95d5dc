package s4store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// entry is the value held per key: an opaque JSON blob plus its CAS
// token and absolute expiry. Values are held as JSON blobs rather than
// decoded Records, matching the original AstaireAoRStore which hands a
// serialized AoR to its memcached client
// (_examples/original_source/include/astaire_aor_store.h) — this also
// gives every reader its own copy for free, satisfying the Record
// model's invariant 1 without s4store needing to know about s4record at
// all.
type entry struct {
	data      []byte
	cas       uint64
	expiresAt time.Time
}

// MemStore is a process-local, CAS-capable Store backed by a concurrent
// map, grounded on the pack's Resinat-Resin routing tables
// (_examples/Resinat-Resin/internal/routing/lease.go), which use the
// same github.com/puzpuzpuz/xsync/v4 map for exactly this kind of hot
// concurrent state. A background sweep evicts entries past their TTL, in
// the shape of the teacher's generic store.TTLStore cleanup loop
// (services/signaling/store/ttlstore.go).
type MemStore struct {
	entries *xsync.Map[string, entry]
	nextCAS atomic.Uint64

	stop chan struct{}
}

// NewMemStore creates a MemStore and starts its background sweep.
func NewMemStore(sweepInterval time.Duration) *MemStore {
	s := &MemStore{
		entries: xsync.NewMap[string, entry](),
		stop:    make(chan struct{}),
	}
	s.nextCAS.Store(1)
	go s.sweepLoop(sweepInterval)
	return s
}

// Close stops the background sweep.
func (s *MemStore) Close() {
	close(s.stop)
}

// RecordCount returns the number of live entries, including any not yet
// reclaimed by the background sweep. Backs s4api's stats endpoint.
func (s *MemStore) RecordCount() int {
	return s.entries.Size()
}

func (s *MemStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *MemStore) sweep() {
	now := time.Now()
	var evicted int
	s.entries.Range(func(key string, e entry) bool {
		if now.After(e.expiresAt) {
			s.entries.Compute(key, func(cur entry, loaded bool) (entry, xsync.ComputeOp) {
				if !loaded || cur.cas != e.cas {
					return cur, xsync.CancelOp
				}
				return cur, xsync.DeleteOp
			})
			evicted++
		}
		return true
	})
	if evicted > 0 {
		slog.Debug("s4store: sweep evicted expired entries", "count", evicted)
	}
}

// Get implements Store.
func (s *MemStore) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	e, ok := s.entries.Load(key)
	if !ok || time.Now().After(e.expiresAt) {
		return nil, 0, ErrNotFound
	}
	return e.data, e.cas, nil
}

// Set implements Store.
func (s *MemStore) Set(ctx context.Context, key string, data []byte, cas uint64, ttl time.Duration) (uint64, error) {
	var newCAS uint64
	var contend bool

	s.entries.Compute(key, func(cur entry, loaded bool) (entry, xsync.ComputeOp) {
		present := loaded && !time.Now().After(cur.expiresAt)
		switch {
		case present && cas != cur.cas:
			contend = true
			return cur, xsync.CancelOp
		case !present && cas != 0:
			contend = true
			return cur, xsync.CancelOp
		}
		newCAS = s.nextCAS.Add(1)
		return entry{
			data:      data,
			cas:       newCAS,
			expiresAt: time.Now().Add(ttl),
		}, xsync.UpdateOp
	})

	if contend {
		return 0, ErrCASContention
	}
	return newCAS, nil
}
