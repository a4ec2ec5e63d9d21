package service

import (
	"context"
	"encoding/base64"
	"maps"
	"slices"

	"pubsubfn/internal/api/v1/dto"
	"pubsubfn/internal/metrics"
	"pubsubfn/internal/model"
	"pubsubfn/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// gpioCommand marks a device-control message whose attributes carry the
// command parameters.
const gpioCommand = "GPIO"

type SubscribeService interface {
	// Receive decodes msg and writes its text to the log. A nil error is the
	// completion signal; failures are *ValidationError or *DecodeError.
	Receive(ctx context.Context, subscription string, msg *dto.PubSubMessage) (*model.Message, error)

	// Handle logs a message the client library already decoded, as delivered
	// by a streaming pull. A nil error acknowledges it.
	Handle(ctx context.Context, msg *model.Message) error
}

type subscribeService struct {
	metrics *metrics.Registry
	logger  zerolog.Logger
}

func NewSubscribeService(reg *metrics.Registry, logger zerolog.Logger) SubscribeService {
	return &subscribeService{metrics: reg, logger: logger}
}

func (s *subscribeService) Receive(ctx context.Context, subscription string, msg *dto.PubSubMessage) (*model.Message, error) {
	if msg == nil {
		s.metrics.RecordReceive(subscription, 0, ErrNoMessage, true)
		return nil, ErrNoMessage
	}

	ctx = tracing.ExtractAttributes(ctx, msg.Attributes)
	_, span := startReceiveSpan(ctx, msg.MessageID, subscription)
	defer span.End()

	data, err := decodeData(msg.Data)
	if err != nil {
		derr := &DecodeError{MessageID: msg.MessageID, Err: err}
		tracing.RecordError(span, derr)
		s.metrics.RecordReceive(subscription, 0, derr, true)
		// The raw payload is not logged: it is not known to be text.
		s.logger.Error().Err(derr).
			Str("messageId", msg.MessageID).
			Str("subscription", subscription).
			Int("dataLength", len(msg.Data)).
			Msg("Discarding message with malformed data")
		return nil, derr
	}

	out := &model.Message{
		ID:           msg.MessageID,
		Subscription: subscription,
		Data:         data,
		Attributes:   msg.Attributes,
		PublishTime:  msg.PublishTime,
	}
	s.logMessage(out)
	s.metrics.RecordReceive(subscription, len(data), nil, false)
	return out, nil
}

func (s *subscribeService) Handle(ctx context.Context, msg *model.Message) error {
	if msg == nil {
		s.metrics.RecordReceive("", 0, ErrNoMessage, true)
		return ErrNoMessage
	}

	ctx = tracing.ExtractAttributes(ctx, msg.Attributes)
	_, span := startReceiveSpan(ctx, msg.ID, msg.Subscription)
	defer span.End()

	s.logMessage(msg)
	s.metrics.RecordReceive(msg.Subscription, len(msg.Data), nil, false)
	return nil
}

func startReceiveSpan(ctx context.Context, messageID, subscription string) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, "pubsub.receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "gcp_pubsub"),
			attribute.String("messaging.message.id", messageID),
			attribute.String("messaging.destination.subscription.name", subscription),
		),
	)
}

// logMessage writes the text as the log line message. For a GPIO command
// each attribute value follows on its own line, in key order.
func (s *subscribeService) logMessage(msg *model.Message) {
	event := s.logger.Info().Str("messageId", msg.ID).Str("subscription", msg.Subscription)
	if len(msg.Data) == 0 {
		event = event.Bool("empty", true)
	}
	event.Msg(msg.Text())

	if msg.Text() != gpioCommand {
		return
	}
	for _, k := range slices.Sorted(maps.Keys(msg.Attributes)) {
		s.logger.Info().
			Str("messageId", msg.ID).
			Str("attribute", k).
			Msg(msg.Attributes[k])
	}
}

// decodeData accepts standard or URL-safe base64, with or without padding.
func decodeData(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if alt, altErr := enc.DecodeString(s); altErr == nil {
			return alt, nil
		}
	}
	return nil, err
}
