package service

import (
	"context"
	"errors"
	"time"

	"pubsubfn/internal/api/v1/dto"
	"pubsubfn/internal/metrics"
	"pubsubfn/internal/pubsub"
	"pubsubfn/internal/tracing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PublishService interface {
	// Publish validates req and forwards it to its topic, returning the
	// message ID. Failures are *ValidationError or *PublishError.
	Publish(ctx context.Context, req *dto.PublishRequest) (string, error)
}

type publishService struct {
	publisher pubsub.Publisher
	validate  *validator.Validate
	metrics   *metrics.Registry
	logger    zerolog.Logger
}

func NewPublishService(publisher pubsub.Publisher, validate *validator.Validate, reg *metrics.Registry, logger zerolog.Logger) PublishService {
	return &publishService{publisher: publisher, validate: validate, metrics: reg, logger: logger}
}

func (s *publishService) Publish(ctx context.Context, req *dto.PublishRequest) (string, error) {
	if err := s.validateRequest(req); err != nil {
		field := "unknown"
		var verr *ValidationError
		if errors.As(err, &verr) && verr.Field != "" {
			field = verr.Field
		}
		s.metrics.RecordPublishRejected(field)
		return "", err
	}

	ctx, span := tracing.Tracer().Start(ctx, "pubsub.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "gcp_pubsub"),
			attribute.String("messaging.destination.name", req.Topic),
		),
	)
	defer span.End()

	s.logger.Info().Str("topic", req.Topic).Msgf("Publishing message to topic %s", req.Topic)

	attrs := tracing.InjectAttributes(ctx, req.Attributes)
	start := time.Now()
	id, err := s.publisher.Publish(ctx, req.Topic, []byte(req.Message), attrs)
	s.metrics.RecordPublish(req.Topic, time.Since(start), err)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.Error().Err(err).Str("topic", req.Topic).Msg("Failed to publish message")
		return "", &PublishError{Topic: req.Topic, Err: err}
	}

	span.SetAttributes(attribute.String("messaging.message.id", id))
	s.logger.Info().Str("topic", req.Topic).Str("messageId", id).Msg("Message published")
	return id, nil
}

// validateRequest maps the first failing field onto its ValidationError.
// Fields are checked in declaration order, so a missing topic is reported
// before a missing message.
func (s *publishService) validateRequest(req *dto.PublishRequest) error {
	if req == nil {
		return ErrTopicRequired
	}
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	switch fe := verrs[0]; fe.StructField() {
	case "Topic":
		return ErrTopicRequired
	case "Message":
		return ErrMessageRequired
	default:
		return &ValidationError{Field: fe.Field(), Message: fe.Error()}
	}
}
