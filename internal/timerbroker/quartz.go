package timerbroker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
)

// QuartzBroker is a process-local Broker built on
// github.com/reugn/go-quartz's one-shot scheduler, grounded on the
// pack's Tochemey-goakt scheduler wrapper
// (_examples/Tochemey-goakt/actor/scheduler.go), which drives the same
// quartz.NewStdScheduler/NewJobDetail/NewRunOnceTrigger/ScheduleJob
// sequence. It stands in for a real external timer service so this
// module does something observable end to end without one.
type QuartzBroker struct {
	scheduler quartz.Scheduler
	pop       PopFunc
}

// NewQuartzBroker starts a scheduler and returns a Broker that invokes
// pop whenever one of its timers fires.
func NewQuartzBroker(pop PopFunc) (*QuartzBroker, error) {
	scheduler, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}
	b := &QuartzBroker{scheduler: scheduler, pop: pop}
	b.scheduler.Start(context.Background())
	return b, nil
}

// Stop shuts the underlying scheduler down.
func (b *QuartzBroker) Stop() {
	_ = b.scheduler.Clear()
	b.scheduler.Stop()
}

func (b *QuartzBroker) schedule(relativeExpiry time.Duration, payload []byte) (string, error) {
	if relativeExpiry <= 0 {
		relativeExpiry = time.Second
	}
	id := uuid.NewString()
	fn := job.NewFunctionJob[bool](func(ctx context.Context) (bool, error) {
		b.pop(ctx, payload)
		return true, nil
	})
	detail := quartz.NewJobDetail(fn, quartz.NewJobKey(id))
	if err := b.scheduler.ScheduleJob(detail, quartz.NewRunOnceTrigger(relativeExpiry)); err != nil {
		return "", err
	}
	return id, nil
}

// Create implements Broker.
func (b *QuartzBroker) Create(ctx context.Context, relativeExpiry time.Duration, tags map[string]int, payload []byte) (string, error) {
	id, err := b.schedule(relativeExpiry, payload)
	if err != nil {
		return "", err
	}
	slog.Debug("timerbroker: created", "broker_id", id, "expiry", relativeExpiry, "tags", tags)
	return id, nil
}

// Update implements Broker. go-quartz's one-shot trigger has no
// in-place reschedule, so an update is a delete-then-create; the
// returned id changes, which the coordinator persists back into the
// record's timer_id exactly as it would for a brand-new broker id.
func (b *QuartzBroker) Update(ctx context.Context, brokerID string, relativeExpiry time.Duration, tags map[string]int, payload []byte) (string, error) {
	_ = b.scheduler.DeleteJob(quartz.NewJobKey(brokerID))
	id, err := b.schedule(relativeExpiry, payload)
	if err != nil {
		return "", err
	}
	slog.Debug("timerbroker: updated", "old_broker_id", brokerID, "new_broker_id", id, "expiry", relativeExpiry, "tags", tags)
	return id, nil
}

// Delete implements Broker.
func (b *QuartzBroker) Delete(ctx context.Context, brokerID string) error {
	_ = b.scheduler.DeleteJob(quartz.NewJobKey(brokerID))
	slog.Debug("timerbroker: deleted", "broker_id", brokerID)
	return nil
}
