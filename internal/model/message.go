package model

import "time"

// Message is an inbound Pub/Sub message after its payload has been decoded.
type Message struct {
	ID           string
	Subscription string
	Data         []byte
	Attributes   map[string]string
	PublishTime  time.Time
}

// Text returns the payload as a string.
func (m *Message) Text() string {
	return string(m.Data)
}
