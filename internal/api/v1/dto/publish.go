package dto

// PublishedResponse is the body returned once the broker accepted a message.
const PublishedResponse = "Message published."

// PublishRequest is the request body of the publish function.
type PublishRequest struct {
	Topic      string            `json:"topic" validate:"required"`
	Message    string            `json:"message" validate:"required"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
