// Package pubsubfn registers the publish and subscribe Cloud Functions.
//
//	gcloud functions call publish --data '{"topic":"my-topic","message":"Hello, world!","attributes":{"key":"val"}}'
package pubsubfn

import (
	"context"
	"net/http"
	"sync"

	"pubsubfn/internal/api/v1/handler"
	"pubsubfn/internal/config"
	"pubsubfn/internal/logger"
	"pubsubfn/internal/pubsub"
	"pubsubfn/internal/service"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

func init() {
	functions.HTTP("publish", publish)
	functions.CloudEvent("subscribe", subscribe)
}

// The runtime keeps an instance warm between invocations, so handlers are
// built on first use and reused. Each entry point builds only what it needs.
var (
	log = logger.New()

	publishOnce    sync.Once
	publishHandler *handler.PublishHandler
	publishErr     error

	subscribeOnce    sync.Once
	subscribeHandler *handler.SubscribeHandler
)

func publish(w http.ResponseWriter, r *http.Request) {
	publishOnce.Do(func() {
		publishHandler, publishErr = newPublishHandler(context.Background(), log)
	})
	if publishErr != nil {
		log.Error().Err(publishErr).Msg("publish function is not initialized")
		http.Error(w, publishErr.Error(), http.StatusInternalServerError)
		return
	}
	publishHandler.Publish(w, r)
}

func subscribe(ctx context.Context, e event.Event) error {
	subscribeOnce.Do(func() {
		subscribeHandler = handler.NewSubscribeHandler(service.NewSubscribeService(nil, log), log)
	})
	return subscribeHandler.HandleCloudEvent(ctx, e)
}

// newPublishHandler wires a publish handler to a Pub/Sub client. The client
// lives for the whole instance, so it is created from a background context.
func newPublishHandler(ctx context.Context, logger zerolog.Logger) (*handler.PublishHandler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	publisher, err := pubsub.NewPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := service.NewPublishService(publisher, validate, nil, logger)
	return handler.NewPublishHandler(svc, logger), nil
}
