package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"pubsubfn/internal/api/v1/dto"
	"pubsubfn/internal/service"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/rs/zerolog"
)

// SubscribeHandler receives Pub/Sub messages, either pushed over HTTP or
// delivered as CloudEvents.
type SubscribeHandler struct {
	subscribeService service.SubscribeService
	logger           zerolog.Logger
}

// NewSubscribeHandler creates a new SubscribeHandler.
func NewSubscribeHandler(subscribeService service.SubscribeService, logger zerolog.Logger) *SubscribeHandler {
	return &SubscribeHandler{subscribeService: subscribeService, logger: logger}
}

// RegisterRoutes mounts the push route behind authMw.
func (h *SubscribeHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/subscribe", authMw(http.HandlerFunc(h.Push)))
}

// Push godoc
// @Summary Receive a Pub/Sub push message
// @Description Decodes the base64 message data and writes it to the log.
// @Tags pubsub
// @Accept json
// @Param request body dto.PubSubPushRequest true "Pub/Sub push envelope"
// @Success 204 "Message acknowledged"
// @Failure 400 {string} string "Invalid push envelope or message data"
// @Failure 401 {string} string "Unauthorized"
// @Router /subscribe [post]
func (h *SubscribeHandler) Push(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Invalid Pub/Sub push payload")
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.subscribeService.Receive(r.Context(), req.Subscription, req.PubSubMessageOrNil()); err != nil {
		var verr *service.ValidationError
		var derr *service.DecodeError
		if errors.As(err, &verr) || errors.As(err, &derr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to handle Pub/Sub push message")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleCloudEvent handles a google.cloud.pubsub.topic.v1.messagePublished
// event. Returning nil acknowledges the message.
func (h *SubscribeHandler) HandleCloudEvent(ctx context.Context, e event.Event) error {
	var data dto.MessagePublishedData
	if err := e.DataAs(&data); err != nil {
		h.logger.Error().Err(err).Str("eventId", e.ID()).Msg("Invalid CloudEvent payload")
		return fmt.Errorf("failed to parse event %s data: %w", e.ID(), err)
	}
	if _, err := h.subscribeService.Receive(ctx, data.Subscription, data.Message); err != nil {
		return fmt.Errorf("failed to handle event %s: %w", e.ID(), err)
	}
	return nil
}
