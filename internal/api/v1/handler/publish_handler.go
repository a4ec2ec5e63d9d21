package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pubsubfn/internal/api/v1/dto"
	"pubsubfn/internal/service"

	"github.com/rs/zerolog"
)

// PublishHandler publishes request bodies to Pub/Sub topics.
type PublishHandler struct {
	publishService service.PublishService
	logger         zerolog.Logger
}

// NewPublishHandler creates a new PublishHandler.
func NewPublishHandler(publishService service.PublishService, logger zerolog.Logger) *PublishHandler {
	return &PublishHandler{publishService: publishService, logger: logger}
}

// RegisterRoutes mounts the publish route.
func (h *PublishHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/publish", h.Publish)
}

// Publish godoc
// @Summary Publish a message to a Pub/Sub topic
// @Description Sends the message, with optional attributes, to the named topic.
// @Tags pubsub
// @Accept json
// @Produce plain
// @Param request body dto.PublishRequest true "Publish request"
// @Success 200 {string} string "Message published."
// @Failure 400 {string} string "Invalid JSON payload"
// @Failure 500 {string} string "Topic not provided, message not provided, or publish failure"
// @Router /publish [post]
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dto.PublishRequest
	// An empty body is an empty request and fails validation below. Anything
	// that does not decode into a request, including mistyped fields, is 400.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn().Err(err).Msg("Invalid publish payload")
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.publishService.Publish(r.Context(), &req); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.logger.Warn().Str("field", verr.Field).Msg(verr.Message)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, dto.PublishedResponse); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response")
	}
}
