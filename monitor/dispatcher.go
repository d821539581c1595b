package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/sirupsen/logrus"
)

type Outcome string

const (
	OutcomeSent       Outcome = "sent"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeFailed     Outcome = "failed"
	OutcomeDryRun     Outcome = "would_send"
)

// Delivery is the fate of one finding for one recipient.
type Delivery struct {
	Kind      Kind      `json:"kind"`
	Severity  string    `json:"severity"`
	Recipient Recipient `json:"recipient"`
	Outcome   Outcome   `json:"outcome"`
}

type DispatchSummary struct {
	Sent       int        `json:"sent"`
	Suppressed int        `json:"suppressed"`
	Failed     int        `json:"failed"`
	DryRun     bool       `json:"dry_run"`
	Deliveries []Delivery `json:"deliveries"`
}

func (s *DispatchSummary) add(d Delivery) {
	switch d.Outcome {
	case OutcomeSent, OutcomeDryRun:
		s.Sent++
	case OutcomeSuppressed:
		s.Suppressed++
	case OutcomeFailed:
		s.Failed++
	}
	s.Deliveries = append(s.Deliveries, d)
}

// Merge folds other into s.
func (s *DispatchSummary) Merge(other DispatchSummary) {
	s.Sent += other.Sent
	s.Suppressed += other.Suppressed
	s.Failed += other.Failed
	s.Deliveries = append(s.Deliveries, other.Deliveries...)
}

// Dispatcher writes notification records for findings.
type Dispatcher struct {
	store   NotificationStore
	limiter *RateLimiter
	cfg     Config
	logger  *logrus.Logger
	clock   func() time.Time
}

func NewDispatcher(store NotificationStore, cfg Config, logger *logrus.Logger, clock func() time.Time) *Dispatcher {
	if clock == nil {
		clock = time.Now
	}
	return &Dispatcher{
		store:   store,
		limiter: NewRateLimiter(store, clock),
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
	}
}

// Dispatch delivers findings to their resolved recipients. With dryRun the
// rate limiter is still consulted but nothing is written.
func (d *Dispatcher) Dispatch(ctx context.Context, findings []Finding, admins []Recipient, dryRun bool) DispatchSummary {
	summary := DispatchSummary{DryRun: dryRun}
	for _, f := range findings {
		cooldown, limited := d.cfg.Cooldown(f.Kind)
		for _, r := range ResolveRecipients(f, admins) {
			delivery := Delivery{Kind: f.Kind, Severity: f.Severity.String(), Recipient: r}
			if limited {
				ok, err := d.limiter.ShouldSend(ctx, r.UserID, f.Kind, cooldown)
				if err != nil {
					// an unreadable history must not silence the notification
					d.logger.WithFields(logrus.Fields{
						"module":    "monitor",
						"funcName":  "Dispatch",
						"kind":      f.Kind,
						"recipient": r.UserID,
					}).Warn(fmt.Sprintf("rate limit lookup failed, sending anyway: %v", err))
				} else if !ok {
					delivery.Outcome = OutcomeSuppressed
					summary.add(delivery)
					continue
				}
			}
			if dryRun {
				delivery.Outcome = OutcomeDryRun
				summary.add(delivery)
				continue
			}
			if err := d.store.CreateNotification(ctx, d.record(f, r)); err != nil {
				d.logger.WithFields(logrus.Fields{
					"module":    "monitor",
					"funcName":  "Dispatch",
					"kind":      f.Kind,
					"recipient": r.UserID,
				}).Error(err.Error())
				delivery.Outcome = OutcomeFailed
				summary.add(delivery)
				continue
			}
			delivery.Outcome = OutcomeSent
			summary.add(delivery)
		}
	}
	return summary
}

func (d *Dispatcher) record(f Finding, r Recipient) *models.Notification {
	return &models.Notification{
		SenderID:    senderOf(f),
		RecipientID: r.UserID,
		Kind:        string(f.Kind),
		Category:    string(f.Category),
		Severity:    f.Severity.String(),
		Verb:        Verb(f.Kind),
		Description: f.Message,
		Link:        f.Link,
		Unread:      true,
		Timestamp:   d.clock().UTC(),
	}
}
