package monitor

import (
	"context"
	"time"
)

// RateLimiter spaces out notifications of one kind to one recipient.
//
// The lookup and the later write are not atomic: two passes running at the
// same time can both decide to send. Passes are serialised by the pass lock in
// workflow, which keeps that window small.
type RateLimiter struct {
	history NotificationHistory
	clock   func() time.Time
}

func NewRateLimiter(history NotificationHistory, clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{history: history, clock: clock}
}

// ShouldSend reports whether kind may be sent to recipientID again. A zero
// cooldown always allows; no prior record always allows.
func (r *RateLimiter) ShouldSend(ctx context.Context, recipientID uint, kind Kind, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	last, err := r.history.LastNotificationAt(ctx, recipientID, string(kind))
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return r.clock().Sub(*last) >= cooldown, nil
}
