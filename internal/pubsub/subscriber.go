package pubsub

import (
	"context"
	"errors"
	"fmt"

	"pubsubfn/internal/config"
	"pubsubfn/internal/model"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// MessageHandler processes one pulled message. Returning nil acks it, an
// error nacks it for redelivery.
type MessageHandler func(ctx context.Context, msg *model.Message) error

// PubSubSubscriber pulls messages from subscriptions over a streaming pull.
type PubSubSubscriber struct {
	client *pubsub.Client
}

// NewSubscriber creates a subscriber for the GCP project from config.
func NewSubscriber(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*PubSubSubscriber, error) {
	projectID := cfg.ProjectID()
	if projectID == "" {
		return nil, errors.New("failed to create Pub/Sub client: GCP project ID is not configured")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubSubscriber{client: client}, nil
}

// Receive blocks, passing every message on subscriptionID to handle, until
// ctx is done. Cancellation is not an error.
func (s *PubSubSubscriber) Receive(ctx context.Context, subscriptionID string, handle MessageHandler) error {
	sub := s.client.Subscription(subscriptionID)
	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		msg := &model.Message{
			ID:           m.ID,
			Subscription: subscriptionID,
			Data:         m.Data,
			Attributes:   m.Attributes,
			PublishTime:  m.PublishTime,
		}
		if err := handle(ctx, msg); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to receive from subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (s *PubSubSubscriber) Close() error {
	return s.client.Close()
}
