package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"pubsubfn/internal/client"
	"pubsubfn/internal/config"
	"pubsubfn/internal/logger"
	"pubsubfn/internal/pubsub"
	"pubsubfn/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	// Parse flags
	mode := flag.String("mode", "", "Client mode: publish|receive")
	topic := flag.String("topic", "", "Topic to publish to (default $PUBSUB_TOPIC)")
	subscription := flag.String("subscription", "", "Subscription to listen on (default $PUBSUB_SUBSCRIPTION)")
	count := flag.Int("count", 9, "Number of messages to publish")
	flag.Parse()

	// Initialize logger
	envErr := godotenv.Load()
	logger := logger.New()
	if envErr != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}
	if *topic == "" {
		*topic = cfg.PubSubTopic
	}
	if *subscription == "" {
		*subscription = cfg.PubSubSubscription
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var runErr error
	switch *mode {
	case "publish":
		if *topic == "" {
			logger.Fatal().Msg("No topic given: set -topic or PUBSUB_TOPIC")
		}
		publisher, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
		}
		defer publisher.Close()
		runErr = client.PublishBatch(ctx, logger, publisher, *topic, *count)
	case "receive":
		if *subscription == "" {
			logger.Fatal().Msg("No subscription given: set -subscription or PUBSUB_SUBSCRIPTION")
		}
		subscriber, err := pubsub.NewSubscriber(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub subscriber: %v", err)
		}
		defer subscriber.Close()
		runErr = client.Listen(ctx, logger, subscriber, *subscription, service.NewSubscribeService(nil, logger))
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s client failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s client stopped gracefully", *mode)
}
