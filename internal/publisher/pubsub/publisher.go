// Package pubsub publishes artifact notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// publishResult is the part of *pubsub.PublishResult the publisher waits on.
type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// Publisher wraps a Pub/Sub topic publisher.
type Publisher struct {
	publish func(ctx context.Context, msg *pubsub.Message) publishResult
}

// New creates a Publisher for the provided topic publisher.
func New(publisher *pubsub.Publisher) (*Publisher, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return &Publisher{
		publish: func(ctx context.Context, msg *pubsub.Message) publishResult {
			return publisher.Publish(ctx, msg)
		},
	}, nil
}

// Publish marshals payload to JSON and publishes it. The logical topic is
// attached as a message attribute so one Pub/Sub topic can carry several
// crawl topics.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"topic": topic},
	}
	id, err := p.publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}
