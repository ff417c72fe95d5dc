// Package sitemanager implements the replicated record manager of spec
// §4.2: one instance per site, exposing GET/PUT/PATCH/DELETE to clients,
// mediating the backing store under a CAS-retry loop, and orchestrating
// best-effort cross-site replication with bounded PUT<->PATCH fallback.
// It is built directly on src/s4.cpp of the original implementation
// (_examples/original_source/src/s4.cpp), which this package's method
// names and control flow intentionally mirror.
package sitemanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sebas/s4/internal/expiry"
	"github.com/sebas/s4/internal/s4record"
	"github.com/sebas/s4/internal/s4store"
	"github.com/sebas/s4/internal/timercoordinator"
)

// Config tunes a Manager's behavior.
type Config struct {
	// GracePeriod is added to a record's last expiry to compute the
	// backing-store TTL (spec §4.2/§6).
	GracePeriod time.Duration

	// MaxCASRetries bounds the PATCH and GET-remote-promote retry loops.
	// The design notes (§9) call these unbounded; we add a budget and
	// convert exhaustion to ErrStoreError, logged at Warn (see
	// SPEC_FULL.md's supplemented features).
	MaxCASRetries int

	// CallbackURI is threaded through to the timer coordinator; it is
	// not otherwise interpreted by the site manager.
	CallbackURI string
}

// DefaultConfig returns sane defaults: a 5 second grace period and a 20
// attempt CAS-retry budget.
func DefaultConfig() Config {
	return Config{
		GracePeriod:   5 * time.Second,
		MaxCASRetries: 20,
	}
}

// Manager is one site's replicated record manager. A "local" manager
// (constructed with NewLocal) owns a timer coordinator and expiry
// dispatcher and replicates to zero or more siblings. A "remote" manager
// (constructed with NewRemote) has neither: it exists only to service
// incoming cross-site calls against this site's own backing store
// without cascading further replication (spec §9: "remote site manager
// holds no siblings"). Both flavors share one implementation because the
// four operations' local semantics are identical; only the optional
// local-only steps differ.
type Manager struct {
	cfg      Config
	store    s4store.Store
	siblings []Sibling

	timerCoord *timercoordinator.Coordinator
	dispatcher *expiry.Dispatcher
}

// NewLocal returns a Manager that serves clients: it replicates writes to
// siblings and runs the timer coordinator and expiry dispatcher on every
// successful local write.
func NewLocal(store s4store.Store, siblings []Sibling, timerCoord *timercoordinator.Coordinator, dispatcher *expiry.Dispatcher, cfg Config) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      store,
		siblings:   siblings,
		timerCoord: timerCoord,
		dispatcher: dispatcher,
	}
}

// NewRemote returns a Manager with no siblings and no timer/expiry
// integration, suitable for servicing another site's replication calls
// against this site's backing store.
func NewRemote(store s4store.Store, cfg Config) *Manager {
	return &Manager{cfg: cfg, store: store}
}

// getAOR reads and decodes the record stored under subID. An absent key
// or a present-but-empty record (zero bindings) both map to ErrNotFound
// per spec §4.2 step 5 — the backing store's "empty" is semantically
// equivalent to absence. Only the empty case is logged (at Debug), so
// the two remain operationally distinguishable without changing the
// client-visible outcome (spec §9 open question).
func (m *Manager) getAOR(ctx context.Context, subID string) (*s4record.Record, error) {
	data, cas, err := m.store.Get(ctx, subID)
	if errors.Is(err, s4store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}

	var rec s4record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		if errors.Is(err, s4record.ErrMalformedRecord) {
			slog.Error("sitemanager: malformed record", "sub_id", subID, "error", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	rec.CAS = cas

	if rec.BindingCount() == 0 {
		slog.Debug("sitemanager: empty record coerced to not-found", "sub_id", subID)
		return nil, ErrNotFound
	}
	return &rec, nil
}

// writeAOR enforces invariant 3 (clearing subscriptions on a
// binding-less record), computes the store TTL from the record's last
// expiry plus grace, and writes under rec.CAS. On success rec.CAS is
// updated to the store's new version. A CAS conflict is reported as
// ErrVersionMismatch; callers interpret that per their own operation's
// semantics (PRECONDITION_FAILED vs. retry).
func (m *Manager) writeAOR(ctx context.Context, subID string, rec *s4record.Record) error {
	if rec.BindingCount() == 0 && rec.SubscriptionCount() > 0 {
		rec.Subscriptions = make(map[string]*s4record.Subscription)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}

	newCAS, err := m.store.Set(ctx, subID, data, rec.CAS, m.ttlFor(rec))
	if errors.Is(err, s4store.ErrCASContention) {
		return ErrVersionMismatch
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	rec.CAS = newCAS
	return nil
}

func (m *Manager) ttlFor(rec *s4record.Record) time.Duration {
	deadline := time.Unix(rec.LastExpires(), 0).Add(m.cfg.GracePeriod)
	ttl := time.Until(deadline)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// notifyTimer invokes the timer coordinator, if this manager has one,
// with the record's post-write state. A no-op on remote managers.
func (m *Manager) notifyTimer(ctx context.Context, subID string, rec *s4record.Record, now time.Time) {
	if m.timerCoord == nil {
		return
	}
	m.timerCoord.Notify(ctx, subID, m.cfg.CallbackURI, rec, now)
}

// notifyExpiry invokes the expiry dispatcher, if this manager has one,
// with the record's post-write state. A no-op on remote managers.
func (m *Manager) notifyExpiry(subID string, rec *s4record.Record, now time.Time) {
	if m.dispatcher == nil {
		return
	}
	m.dispatcher.MaybeDispatch(subID, rec, now)
}

// Get implements GET (spec §4.2). On a local miss, it tries each sibling
// in order and, on the first hit, seeds the local store from the
// fetched record before returning it.
func (m *Manager) Get(ctx context.Context, subID string) (*s4record.Record, error) {
	for attempt := 0; attempt < m.cfg.MaxCASRetries; attempt++ {
		rec, err := m.getAOR(ctx, subID)
		if err == nil {
			return rec.Clone(), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		retry, promoted, promoteErr := m.promoteFromSibling(ctx, subID)
		if promoteErr != nil {
			return nil, promoteErr
		}
		if promoted != nil {
			return promoted, nil
		}
		if !retry {
			return nil, ErrNotFound
		}
		// A sibling had it but the local seed write hit contention;
		// restart the outer loop and re-read.
	}
	slog.Warn("sitemanager: get exceeded max cas retries", "sub_id", subID)
	return nil, fmt.Errorf("%w: exceeded max cas retries on get", ErrStoreError)
}

// promoteFromSibling tries each sibling's GET in order. It returns
// (true, nil, nil) if a sibling had the record but the local seed write
// lost a CAS race (caller should restart), (false, rec, nil) on a clean
// promotion, or (false, nil, nil) if no sibling had it.
func (m *Manager) promoteFromSibling(ctx context.Context, subID string) (retry bool, promoted *s4record.Record, err error) {
	for _, sib := range m.siblings {
		remote, _, sErr := sib.Get(ctx, subID)
		if sErr != nil {
			continue
		}
		remote.CAS = 0
		writeErr := m.writeAOR(ctx, subID, remote)
		if writeErr == nil {
			return false, remote.Clone(), nil
		}
		if errors.Is(writeErr, ErrVersionMismatch) {
			return true, nil, nil
		}
		return false, nil, writeErr
	}
	return false, nil, nil
}

// Put implements PUT (spec §4.2): create-only, never reads first.
func (m *Manager) Put(ctx context.Context, subID string, rec *s4record.Record) error {
	rec.CAS = 0
	if err := m.writeAOR(ctx, subID, rec); err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			return ErrAlreadyExists
		}
		return err
	}

	now := time.Now()
	m.notifyTimer(ctx, subID, rec, now)
	m.replicatePut(ctx, subID, rec)
	m.notifyExpiry(subID, rec, now)
	return nil
}

// Delete implements the client-facing DELETE (spec §4.2), version-checked
// and replicated to siblings best-effort.
func (m *Manager) Delete(ctx context.Context, subID string, version uint64) error {
	rec, err := m.getAOR(ctx, subID)
	if err != nil {
		return err
	}
	if rec.CAS != version {
		return ErrVersionMismatch
	}

	rec.Clear(true)
	if err := m.writeAOR(ctx, subID, rec); err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			return ErrVersionMismatch
		}
		return err
	}

	now := time.Now()
	m.notifyTimer(ctx, subID, rec, now)
	m.replicateDelete(ctx, subID)
	m.notifyExpiry(subID, rec, now)
	return nil
}

// RemoteDelete implements remote-DELETE (spec §4.2): sibling-to-sibling,
// no version check, retrying on CAS contention until success, not-found,
// or a hard error. It has no return value: the originating site's reply
// to its own client is independent of this outcome.
func (m *Manager) RemoteDelete(ctx context.Context, subID string) {
	for attempt := 0; attempt < m.cfg.MaxCASRetries; attempt++ {
		rec, err := m.getAOR(ctx, subID)
		if err != nil {
			return
		}
		rec.Clear(true)
		writeErr := m.writeAOR(ctx, subID, rec)
		if writeErr == nil {
			now := time.Now()
			m.notifyTimer(ctx, subID, rec, now)
			m.notifyExpiry(subID, rec, now)
			return
		}
		if errors.Is(writeErr, ErrVersionMismatch) {
			continue
		}
		return
	}
	slog.Warn("sitemanager: remote-delete exceeded max cas retries", "sub_id", subID)
}

// Patch implements PATCH (spec §4.2): read-apply-write with a CAS-retry
// loop that re-reads and re-applies on contention.
func (m *Manager) Patch(ctx context.Context, subID string, patch *s4record.Patch) (*s4record.Record, error) {
	for attempt := 0; attempt < m.cfg.MaxCASRetries; attempt++ {
		rec, err := m.getAOR(ctx, subID)
		if err != nil {
			return nil, err
		}

		rec.Patch(patch)
		writeErr := m.writeAOR(ctx, subID, rec)
		if writeErr == nil {
			now := time.Now()
			m.notifyTimer(ctx, subID, rec, now)

			replPatch := patch.Clone()
			replPatch.IncrementCSeq = false
			replPatch.MinimumCSeq = rec.NotifyCSeq
			m.replicatePatch(ctx, subID, replPatch, rec)

			m.notifyExpiry(subID, rec, now)
			return rec.Clone(), nil
		}
		if errors.Is(writeErr, ErrVersionMismatch) {
			continue
		}
		return nil, writeErr
	}
	slog.Warn("sitemanager: patch exceeded max cas retries", "sub_id", subID)
	return nil, fmt.Errorf("%w: exceeded max cas retries on patch", ErrStoreError)
}

// replicatePut implements the PUT replication policy (spec §4.2): call
// each sibling's PUT; on ErrAlreadyExists, fall back once to the
// sibling's PATCH via rec.ToPatch(). Any other failure, and any failure
// of the fallback call, is dropped — cross-site failures never affect
// the client-visible return code.
func (m *Manager) replicatePut(ctx context.Context, subID string, rec *s4record.Record) {
	for _, sib := range m.siblings {
		err := sib.Put(ctx, subID, rec.Clone())
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrAlreadyExists) {
			slog.Warn("sitemanager: put replication failed", "sub_id", subID, "error", err)
			continue
		}
		if _, fallbackErr := sib.Patch(ctx, subID, rec.ToPatch()); fallbackErr != nil {
			slog.Warn("sitemanager: put->patch replication fallback failed", "sub_id", subID, "error", fallbackErr)
		}
	}
}

// replicatePatch implements the PATCH replication policy (spec §4.2):
// call each sibling's PATCH with replPatch; on ErrNotFound, fall back
// once to a fresh record seeded via CopyFrom(originating) and the
// sibling's PUT.
func (m *Manager) replicatePatch(ctx context.Context, subID string, replPatch *s4record.Patch, originating *s4record.Record) {
	for _, sib := range m.siblings {
		_, err := sib.Patch(ctx, subID, replPatch.Clone())
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("sitemanager: patch replication failed", "sub_id", subID, "error", err)
			continue
		}
		fresh := s4record.New(originating.URI, originating.SCSCFURI)
		fresh.CopyFrom(originating)
		if fallbackErr := sib.Put(ctx, subID, fresh); fallbackErr != nil {
			slog.Warn("sitemanager: patch->put replication fallback failed", "sub_id", subID, "error", fallbackErr)
		}
	}
}

// replicateDelete implements the DELETE replication policy (spec §4.2):
// call each sibling's remote-DELETE. Any outcome is accepted.
func (m *Manager) replicateDelete(ctx context.Context, subID string) {
	for _, sib := range m.siblings {
		sib.RemoteDelete(ctx, subID)
	}
}
