// Package timercoordinator implements the per-local-site component that
// keeps a Record's timer_id in sync with the external timer broker
// (spec §4.3). It is owned by the local site manager only; remote site
// managers never construct one.
package timercoordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sebas/s4/internal/s4record"
	"github.com/sebas/s4/internal/timerbroker"
)

// minRelativeExpiry is the floor substituted for the source's "now"
// wart (spec §9, open question: expiry floor). When next_expires <= now
// the original computes a relative expiry of `now` seconds — an absolute
// epoch value passed where a small duration was meant. We use a 1-second
// floor instead, as §9 recommends, and note the divergence here rather
// than reproducing the bug.
const minRelativeExpiry = time.Second

// Coordinator issues create/update/delete calls against a Broker to
// track one record's expiry.
type Coordinator struct {
	broker timerbroker.Broker
}

// New returns a Coordinator driving broker.
func New(broker timerbroker.Broker) *Coordinator {
	return &Coordinator{broker: broker}
}

// popPayload is the opaque JSON body the coordinator hands the broker and
// gets back verbatim on the eventual pop (spec §6).
type popPayload struct {
	AORID string `json:"aor_id"`
}

// Notify is called after every successful local write with the record's
// post-write state. callbackURI is threaded through for parity with the
// source's signature and a future HTTP-callback broker; QuartzBroker
// ignores it since it invokes its pop function in-process.
//
// Broker failures are logged and suppressed (spec §7: BrokerError must
// not fail the calling operation); the site manager never sees them.
func (c *Coordinator) Notify(ctx context.Context, subID, callbackURI string, record *s4record.Record, now time.Time) {
	if record.BindingCount() == 0 {
		if record.TimerID != "" {
			if err := c.broker.Delete(ctx, record.TimerID); err != nil {
				slog.Warn("timercoordinator: broker delete failed", "sub_id", subID, "timer_id", record.TimerID, "error", err)
			}
		}
		return
	}

	tags := map[string]int{
		"REG":  1,
		"BIND": record.BindingCount(),
		"SUB":  record.SubscriptionCount(),
	}

	nowEpoch := now.Unix()
	next := record.NextExpires()
	expiry := time.Duration(next-nowEpoch) * time.Second
	if next <= nowEpoch {
		expiry = minRelativeExpiry
	}

	payload, err := json.Marshal(popPayload{AORID: subID})
	if err != nil {
		slog.Warn("timercoordinator: failed to encode payload", "sub_id", subID, "error", err)
		return
	}

	var brokerID string
	if record.TimerID == "" {
		brokerID, err = c.broker.Create(ctx, expiry, tags, payload)
	} else {
		brokerID, err = c.broker.Update(ctx, record.TimerID, expiry, tags, payload)
	}
	if err != nil {
		slog.Warn("timercoordinator: broker exchange failed", "sub_id", subID, "error", err)
		return
	}
	record.TimerID = brokerID
}
