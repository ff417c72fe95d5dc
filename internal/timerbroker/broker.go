// Package timerbroker defines the external one-shot timer service S4's
// timer coordinator talks to (the "broker" of spec §4.3), plus a
// concrete, runnable implementation standing in for a real Chronos-style
// service.
package timerbroker

import (
	"context"
	"time"
)

// PopFunc is invoked when a previously created or updated timer fires.
// payload is the opaque bytes the coordinator supplied at Create/Update
// time, returned verbatim — mirroring a real broker's HTTP callback body
// (spec §6).
type PopFunc func(ctx context.Context, payload []byte)

// Broker is the narrow capability the timer coordinator needs: create,
// update, and delete a one-shot timer by the broker's own id.
type Broker interface {
	// Create schedules a new one-shot timer firing after relativeExpiry
	// and returns the broker-assigned id.
	Create(ctx context.Context, relativeExpiry time.Duration, tags map[string]int, payload []byte) (brokerID string, err error)

	// Update reschedules the timer identified by brokerID, returning the
	// (possibly new) broker id to persist.
	Update(ctx context.Context, brokerID string, relativeExpiry time.Duration, tags map[string]int, payload []byte) (newBrokerID string, err error)

	// Delete cancels the timer identified by brokerID. Deleting an
	// already-fired or unknown id is not an error.
	Delete(ctx context.Context, brokerID string) error
}
