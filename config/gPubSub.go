package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NewPubSubClient uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is set.
func NewPubSubClient(ctx context.Context, s Settings, maxAttempts int) (*pubsub.Client, error) {
	if s.PubSubProjectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var attempt int
	for {
		attempt++

		var (
			c   *pubsub.Client
			err error
		)
		if s.PubSubCredJSON != "" {
			c, err = pubsub.NewClient(ctx, s.PubSubProjectID, option.WithCredentialsJSON([]byte(s.PubSubCredJSON)))
		} else {
			c, err = pubsub.NewClient(ctx, s.PubSubProjectID)
		}
		if err == nil {
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", s.PubSubProjectID, attempt)
			return c, nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, fmt.Errorf("init pubsub client (project_id=%s): %w", s.PubSubProjectID, err)
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", s.PubSubProjectID, attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// EnsureTopic returns the named topic, creating it when missing.
func EnsureTopic(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}
