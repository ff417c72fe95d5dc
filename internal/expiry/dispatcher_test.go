package expiry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sebas/s4/internal/s4record"
)

type fakeConsumer struct {
	mu     sync.Mutex
	popped []string
	done   chan struct{}
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{done: make(chan struct{}, 1)}
}

func (f *fakeConsumer) HandleTimerPop(ctx context.Context, subID, trailID string) {
	f.mu.Lock()
	f.popped = append(f.popped, subID)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func TestMaybeDispatchFiresOnElapsedBinding(t *testing.T) {
	consumer := newFakeConsumer()
	d := New(consumer)

	r := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	r.GetBinding("b1").Expires = 995

	d.MaybeDispatch("alice", r, time.Unix(1000, 0))

	select {
	case <-consumer.done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for synthetic pop")
	}

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	if len(consumer.popped) != 1 || consumer.popped[0] != "alice" {
		t.Fatalf("popped = %v, want [alice]", consumer.popped)
	}
}

func TestMaybeDispatchSkipsOnFutureExpiry(t *testing.T) {
	consumer := newFakeConsumer()
	d := New(consumer)

	r := s4record.New("sip:alice@example.com", "sip:scscf.example.com")
	r.GetBinding("b1").Expires = 2000

	d.MaybeDispatch("alice", r, time.Unix(1000, 0))

	select {
	case <-consumer.done:
		t.Fatalf("synthetic pop fired for a future expiry")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMaybeDispatchSkipsOnEmptyRecord(t *testing.T) {
	consumer := newFakeConsumer()
	d := New(consumer)

	r := s4record.New("sip:alice@example.com", "sip:scscf.example.com")

	d.MaybeDispatch("alice", r, time.Unix(1000, 0))

	select {
	case <-consumer.done:
		t.Fatalf("synthetic pop fired for an empty record")
	case <-time.After(50 * time.Millisecond):
	}
}
