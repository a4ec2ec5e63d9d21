package dto

import "time"

// PubSubMessage is the actual message from Pub/Sub.
type PubSubMessage struct {
	Data        string            `json:"data"` // Base64-encoded
	MessageID   string            `json:"messageId,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	PublishTime time.Time         `json:"publishTime,omitzero"`
}

// PubSubPushRequest is the request body for a Pub/Sub push notification.
// Legacy background events carry the message under "data" instead of
// "message"; both are accepted.
type PubSubPushRequest struct {
	Message      *PubSubMessage `json:"message,omitempty"`
	Data         *PubSubMessage `json:"data,omitempty"`
	Subscription string         `json:"subscription,omitempty"`
}

// PubSubMessageOrNil returns the carried message, preferring the push
// envelope, or nil when neither envelope is present.
func (r *PubSubPushRequest) PubSubMessageOrNil() *PubSubMessage {
	if r.Message != nil {
		return r.Message
	}
	return r.Data
}

// MessagePublishedData is the CloudEvent payload of
// google.cloud.pubsub.topic.v1.messagePublished.
type MessagePublishedData struct {
	Message      *PubSubMessage `json:"message"`
	Subscription string         `json:"subscription"`
}
