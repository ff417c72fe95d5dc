package sitemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sebas/s4/internal/s4record"
	"github.com/sebas/s4/internal/s4store"
)

func newTestManager(siblings ...Sibling) *Manager {
	store := s4store.NewMemStore(time.Hour)
	return NewLocal(store, siblings, nil, nil, DefaultConfig())
}

func newTestRemote() (*Manager, *LocalSibling) {
	store := s4store.NewMemStore(time.Hour)
	m := NewRemote(store, DefaultConfig())
	return m, &LocalSibling{Remote: m}
}

func TestGetFromEmptyLocalPresentRemote(t *testing.T) {
	remote, remoteSibling := newTestRemote()
	local := newTestManager(remoteSibling)

	seed := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	seed.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	if err := remote.Put(context.Background(), "alice", seed); err != nil {
		t.Fatalf("seeding remote: %v", err)
	}

	got, err := local.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.Bindings["b1"]; !ok {
		t.Fatalf("promoted record missing binding b1: %+v", got)
	}

	// Post-condition: local store now contains the record.
	again, err := local.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("second local Get: %v", err)
	}
	if again.CAS == 0 {
		t.Fatalf("promoted record was not actually written locally")
	}
}

func TestPutThenPut(t *testing.T) {
	m := newTestManager()
	r1 := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	r1.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	r1.NotifyCSeq = 1

	if err := m.Put(context.Background(), "alice", r1); err != nil {
		t.Fatalf("first put: %v", err)
	}

	r2 := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	r2.GetBinding("b2").Expires = time.Now().Add(time.Hour).Unix()
	r2.NotifyCSeq = 99

	err := m.Put(context.Background(), "alice", r2)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second put err = %v, want ErrAlreadyExists", err)
	}

	got, err := m.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get after failed second put: %v", err)
	}
	if got.NotifyCSeq != 1 {
		t.Fatalf("stored record CSeq = %d, want unchanged 1 (r1's)", got.NotifyCSeq)
	}
}

func TestPatchAddsThenRemovesBinding(t *testing.T) {
	var replicatedPatch *s4record.Patch
	sibling := &recordingSibling{onPatch: func(p *s4record.Patch) { replicatedPatch = p }}
	m := newTestManager(sibling)

	seed := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	seed.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	seed.GetBinding("b2").Expires = time.Now().Add(time.Hour).Unix()
	seed.NotifyCSeq = 5
	if err := m.Put(context.Background(), "alice", seed); err != nil {
		t.Fatalf("seed put: %v", err)
	}

	b3 := &s4record.Binding{ContactURI: "sip:alice@10.0.0.3", Expires: time.Now().Add(time.Hour).Unix()}
	patch := &s4record.Patch{
		UpdateBindings: map[string]*s4record.Binding{"b3": b3},
		RemoveBindings: []string{"b1"},
		IncrementCSeq:  true,
	}

	got, err := m.Patch(context.Background(), "alice", patch)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if _, ok := got.Bindings["b1"]; ok {
		t.Fatalf("b1 should have been removed")
	}
	if _, ok := got.Bindings["b2"]; !ok {
		t.Fatalf("b2 should still be present")
	}
	if _, ok := got.Bindings["b3"]; !ok {
		t.Fatalf("b3 should have been added")
	}
	if got.NotifyCSeq != 6 {
		t.Fatalf("NotifyCSeq = %d, want 6", got.NotifyCSeq)
	}

	if replicatedPatch == nil {
		t.Fatalf("no patch was replicated to sibling")
	}
	if replicatedPatch.IncrementCSeq {
		t.Fatalf("replicated patch has IncrementCSeq=true, want false")
	}
	if replicatedPatch.MinimumCSeq != 6 {
		t.Fatalf("replicated patch MinimumCSeq = %d, want 6", replicatedPatch.MinimumCSeq)
	}
}

func TestDeleteWithStaleVersion(t *testing.T) {
	m := newTestManager()
	seed := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	seed.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	if err := m.Put(context.Background(), "alice", seed); err != nil {
		t.Fatalf("seed put: %v", err)
	}

	got, err := m.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	staleVersion := got.CAS + 1000

	err = m.Delete(context.Background(), "alice", staleVersion)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("delete with stale version: err = %v, want ErrVersionMismatch", err)
	}

	still, err := m.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get after failed delete: %v", err)
	}
	if _, ok := still.Bindings["b1"]; !ok {
		t.Fatalf("record was cleared despite stale-version delete being rejected")
	}
}

func TestEmptyRecordEquivalence(t *testing.T) {
	m := newTestManager()
	seed := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	seed.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()
	if err := m.Put(context.Background(), "alice", seed); err != nil {
		t.Fatalf("seed put: %v", err)
	}

	got, err := m.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := m.Delete(context.Background(), "alice", got.CAS); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = m.Get(context.Background(), "alice")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("get on deleted (now-empty) record: err = %v, want ErrNotFound", err)
	}
}

func TestReplicationFailureDoesNotAffectClientResult(t *testing.T) {
	sibling := &recordingSibling{putErr: errors.New("sibling unreachable")}
	m := newTestManager(sibling)

	seed := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	seed.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()

	if err := m.Put(context.Background(), "alice", seed); err != nil {
		t.Fatalf("put should succeed despite sibling failure: %v", err)
	}
}

func TestPutReplicationFallsBackToPatchBoundedDepth1(t *testing.T) {
	sibling := &recordingSibling{putErr: ErrAlreadyExists}
	m := newTestManager(sibling)

	seed := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	seed.GetBinding("b1").Expires = time.Now().Add(time.Hour).Unix()

	if err := m.Put(context.Background(), "alice", seed); err != nil {
		t.Fatalf("put: %v", err)
	}

	if sibling.putCalls != 1 {
		t.Fatalf("sibling.Put called %d times, want 1", sibling.putCalls)
	}
	if sibling.patchCalls != 1 {
		t.Fatalf("sibling.Patch (fallback) called %d times, want 1", sibling.patchCalls)
	}
}

// recordingSibling is a hand-written fake Sibling, in the teacher's
// no-mocking-framework test style.
type recordingSibling struct {
	putErr     error
	patchErr   error
	putCalls   int
	patchCalls int
	onPatch    func(*s4record.Patch)
}

func (s *recordingSibling) Get(ctx context.Context, subID string) (*s4record.Record, uint64, error) {
	return nil, 0, ErrNotFound
}

func (s *recordingSibling) Put(ctx context.Context, subID string, record *s4record.Record) error {
	s.putCalls++
	return s.putErr
}

func (s *recordingSibling) Patch(ctx context.Context, subID string, patch *s4record.Patch) (*s4record.Record, error) {
	s.patchCalls++
	if s.onPatch != nil {
		s.onPatch(patch)
	}
	if s.patchErr != nil {
		return nil, s.patchErr
	}
	return s4record.New("", ""), nil
}

func (s *recordingSibling) RemoteDelete(ctx context.Context, subID string) {}
