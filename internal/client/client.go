// Package client runs the device-side Pub/Sub loops: publishing a numbered
// batch of messages and listening on a subscription for commands.
package client

import (
	"context"
	"fmt"

	"pubsubfn/internal/pubsub"
	"pubsubfn/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Receiver is implemented by *pubsub.PubSubSubscriber.
type Receiver interface {
	Receive(ctx context.Context, subscriptionID string, handle pubsub.MessageHandler) error
}

// PublishBatch publishes "Message number 1" through "Message number count"
// to topic. Messages are sent concurrently and the client library batches
// them; the first failure is returned once every publish has finished.
func PublishBatch(ctx context.Context, logger zerolog.Logger, publisher pubsub.Publisher, topic string, count int) error {
	g, gctx := errgroup.WithContext(ctx)
	for n := 1; n <= count; n++ {
		g.Go(func() error {
			id, err := publisher.Publish(gctx, topic, fmt.Appendf(nil, "Message number %d", n), nil)
			if err != nil {
				return fmt.Errorf("message number %d: %w", n, err)
			}
			logger.Debug().Int("n", n).Str("messageId", id).Msg("Message published")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Str("topic", topic).Int("count", count).Msg("Published messages.")
	return nil
}

// Listen hands every message on subscriptionID to svc until ctx is done.
func Listen(ctx context.Context, logger zerolog.Logger, receiver Receiver, subscriptionID string, svc service.SubscribeService) error {
	logger.Info().Str("subscription", subscriptionID).Msgf("Listening on %s", subscriptionID)
	return receiver.Receive(ctx, subscriptionID, svc.Handle)
}
