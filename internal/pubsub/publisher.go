package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pubsubfn/internal/config"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrPublisherClosed is returned by Publish after Close has been called.
var ErrPublisherClosed = errors.New("publisher is closed")

// maxCachedTopics bounds the topic-handle cache. Topic names come from
// request bodies.
const maxCachedTopics = 64

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client

	// Topic handles are reused across calls so their publish goroutines are
	// started once per topic.
	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
	closed bool
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
// When PUBSUB_EMULATOR_HOST is set the client library connects to the emulator.
func NewPublisher(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*PubSubPublisher, error) {
	projectID := cfg.ProjectID()
	if projectID == "" {
		return nil, errors.New("failed to create Pub/Sub client: GCP project ID is not configured")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload with its attributes to the given Pub/Sub topic
// and returns the server-assigned message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) (string, error) {
	t, cached, err := p.topic(topic)
	if err != nil {
		return "", err
	}
	if !cached {
		defer t.Stop()
	}
	result := t.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attributes})
	id, err := result.Get(ctx)
	if err != nil {
		if cached && isUnknownTopic(err) {
			p.evict(topic, t)
		}
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

// Close flushes and stops every cached topic, then closes the client.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = nil
	p.closed = true
	return p.client.Close()
}

// topic returns the handle for id. cached is false when the cache is full;
// the caller then owns the handle and must Stop it.
func (p *PubSubPublisher) topic(id string) (t *pubsub.Topic, cached bool, err error) {
	p.mu.RLock()
	t, ok := p.topics[id]
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return nil, false, ErrPublisherClosed
	}
	if ok {
		return t, true, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, ErrPublisherClosed
	}
	if t, ok := p.topics[id]; ok {
		return t, true, nil
	}
	if len(p.topics) >= maxCachedTopics {
		return p.client.Topic(id), false, nil
	}
	if p.topics == nil {
		p.topics = make(map[string]*pubsub.Topic)
	}
	t = p.client.Topic(id)
	p.topics[id] = t
	return t, true, nil
}

// evict drops a handle the broker rejected so bad topic names do not
// accumulate in the cache.
func (p *PubSubPublisher) evict(id string, t *pubsub.Topic) {
	p.mu.Lock()
	if p.topics[id] == t {
		delete(p.topics, id)
	}
	p.mu.Unlock()
	t.Stop()
}

func isUnknownTopic(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.InvalidArgument:
		return true
	}
	return false
}
