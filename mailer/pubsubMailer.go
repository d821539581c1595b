// Package mailer hands alert e-mails over to a transport. Delivery itself is
// done by the mail worker consuming MAIL_TOPIC.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/sirupsen/logrus"
)

// ErrNoTransport is returned by LogMailer: the e-mail was logged, not delivered.
var ErrNoTransport = errors.New("no mail transport configured; e-mail not delivered")

// Publisher puts one message on a topic and returns its server id.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

type topicPublisher struct {
	topic *pubsub.Topic
}

// TopicPublisher adapts a pubsub topic.
func TopicPublisher(t *pubsub.Topic) Publisher {
	return topicPublisher{topic: t}
}

func (p topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	res := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return res.Get(ctx)
}

// PubSubMailer publishes each e-mail as a JSON message.
type PubSubMailer struct {
	pub    Publisher
	logger *logrus.Logger
}

func NewPubSubMailer(pub Publisher, logger *logrus.Logger) *PubSubMailer {
	return &PubSubMailer{pub: pub, logger: logger}
}

func (m *PubSubMailer) Send(ctx context.Context, e monitor.Email) error {
	if len(e.To) == 0 {
		return monitor.ErrNoMailRecipients
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	id, err := m.pub.Publish(ctx, data, map[string]string{"type": "email", "source": "moldpark-monitor"})
	if err != nil {
		return fmt.Errorf("publish e-mail: %w", err)
	}
	m.logger.WithFields(logrus.Fields{
		"module":     "mailer",
		"message_id": id,
		"recipients": len(e.To),
	}).Info("alert e-mail queued")
	return nil
}

// LogMailer only logs; it stands in when no topic is configured.
type LogMailer struct {
	logger *logrus.Logger
}

func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, e monitor.Email) error {
	m.logger.WithFields(logrus.Fields{
		"module":  "mailer",
		"to":      e.To,
		"subject": e.Subject,
	}).Warn("no mail topic configured; e-mail not delivered")
	return ErrNoTransport
}

var (
	_ monitor.Mailer = (*PubSubMailer)(nil)
	_ monitor.Mailer = (*LogMailer)(nil)
)
