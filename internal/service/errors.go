package service

import "fmt"

// ValidationError reports a missing or malformed input field. It is
// recovered locally into an error response.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrTopicRequired = &ValidationError{
		Field:   "topic",
		Message: `Topic not provided. Make sure you have a "topic" property in your request`,
	}
	ErrMessageRequired = &ValidationError{
		Field:   "message",
		Message: `Message not provided. Make sure you have a "message" property in your request`,
	}
	ErrNoMessage = &ValidationError{
		Field:   "message",
		Message: `Pub/Sub message not provided. Expected a "message" or "data" property`,
	}
)

// PublishError wraps a failure returned by the broker.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string { return e.Err.Error() }

func (e *PublishError) Unwrap() error { return e.Err }

// DecodeError reports an inbound payload that is not valid base64.
type DecodeError struct {
	MessageID string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode data of message %q: %v", e.MessageID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
