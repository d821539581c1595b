package monitor

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// Email is handed to a Mailer; the transport is not this package's concern.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

var ErrNoMailRecipients = errors.New("no administrator has an e-mail address")

// ShouldEmail is true when alert mode is on and the pass produced at least threshold findings.
func ShouldEmail(sendAlerts bool, findings, threshold int) bool {
	return sendAlerts && findings >= threshold
}

type EmailOutcome struct {
	Attempted  bool   `json:"attempted"`
	Sent       bool   `json:"sent"`
	Recipients int    `json:"recipients"`
	Error      string `json:"error,omitempty"`
}

func (o EmailOutcome) String() string {
	switch {
	case !o.Attempted:
		return "not sent"
	case o.Sent:
		return "sent"
	default:
		return "failed: " + o.Error
	}
}

// EmailAlert mails the alert to every administrator with an address. Failures
// are logged and reported in the outcome, never returned.
func EmailAlert(ctx context.Context, m Mailer, from string, admins []Recipient, subject, body string, logger *logrus.Logger) EmailOutcome {
	to := Emails(admins)
	out := EmailOutcome{Attempted: true, Recipients: len(to)}
	if len(to) == 0 {
		out.Error = ErrNoMailRecipients.Error()
		logger.WithFields(logrus.Fields{"module": "monitor", "funcName": "EmailAlert"}).Warn(out.Error)
		return out
	}
	if m == nil {
		out.Error = "no mail transport configured"
		logger.WithFields(logrus.Fields{"module": "monitor", "funcName": "EmailAlert"}).Warn(out.Error)
		return out
	}
	err := m.Send(ctx, Email{From: from, To: to, Subject: subject, Body: body})
	if err != nil {
		out.Error = err.Error()
		logger.WithFields(logrus.Fields{
			"module":   "monitor",
			"funcName": "EmailAlert",
			"to":       strings.Join(to, ","),
		}).Error(err.Error())
		return out
	}
	out.Sent = true
	return out
}
