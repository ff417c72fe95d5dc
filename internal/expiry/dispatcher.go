// Package expiry implements the synthetic timer-pop dispatcher of spec
// §4.4: when a write leaves a record with an already-elapsed binding,
// it notifies the registered consumer on a worker distinct from the
// calling one, identical in shape to a real broker callback.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/sebas/s4/internal/s4record"
)

// maxConcurrentDispatches bounds in-flight synthetic pops, in the shape
// of the teacher's drain.Coordinator.MaxConcurrentMigrations
// (internal/signaling/drain/coordinator.go).
const maxConcurrentDispatches = 10

// Consumer is the late-bound capability the site manager's timer-pop
// notifications (real or synthetic) are delivered to. It is the same
// interface a real broker callback and the expiry dispatcher both target
// (spec §9: "timer-pop consumer as a late-bound capability"), grounded
// on the original's BaseSubscriberManager::handle_timer_pop
// (_examples/original_source/include/base_subscriber_manager.h).
type Consumer interface {
	HandleTimerPop(ctx context.Context, subID, trailID string)
}

// Dispatcher hands synthetic timer-pop notifications to a Consumer on a
// bounded pool of workers distinct from the caller, so it never recurses
// into the site manager on the current task.
type Dispatcher struct {
	consumer Consumer
	sem      *semaphore.Weighted
}

// New returns a Dispatcher delivering to consumer.
func New(consumer Consumer) *Dispatcher {
	return &Dispatcher{
		consumer: consumer,
		sem:      semaphore.NewWeighted(maxConcurrentDispatches),
	}
}

// MaybeDispatch inspects record's post-write state and, if it still has
// at least one binding and its next expiry is already at or before now,
// schedules exactly one synthetic pop for subID.
func (d *Dispatcher) MaybeDispatch(subID string, record *s4record.Record, now time.Time) {
	if record.BindingCount() == 0 {
		return
	}
	if record.NextExpires() > now.Unix() {
		return
	}
	d.Dispatch(subID)
}

// Dispatch unconditionally schedules one synthetic pop for subID,
// delivered asynchronously on its own worker.
func (d *Dispatcher) Dispatch(subID string) {
	trailID := uuid.NewString()
	go d.run(subID, trailID)
}

func (d *Dispatcher) run(subID, trailID string) {
	ctx := context.Background()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("expiry: failed to acquire dispatch worker", "sub_id", subID, "trail_id", trailID, "error", err)
		return
	}
	defer d.sem.Release(1)

	slog.Debug("expiry: dispatching synthetic timer pop", "sub_id", subID, "trail_id", trailID)
	d.consumer.HandleTimerPop(ctx, subID, trailID)
}
