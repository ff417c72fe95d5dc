package s4api

import (
	"context"
	"log/slog"
)

// LoggingConsumer is a minimal expiry.Consumer that logs a timer pop
// instead of acting on it. Spec §1 places the "subscriber manager" that
// really consumes these notifications out of scope ("referenced only by
// interface"); this stands in for it so cmd/s4 has something concrete to
// wire the webhook and dispatcher to.
type LoggingConsumer struct{}

// HandleTimerPop implements expiry.Consumer.
func (LoggingConsumer) HandleTimerPop(ctx context.Context, subID, trailID string) {
	slog.Info("s4api: timer pop", "sub_id", subID, "trail_id", trailID)
}
