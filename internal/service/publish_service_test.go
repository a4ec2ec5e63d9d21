package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"pubsubfn/internal/api/v1/dto"
	"pubsubfn/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type fakePublisher struct {
	calls   int
	topic   string
	payload []byte
	attrs   map[string]string

	id  string
	err error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte, attributes map[string]string) (string, error) {
	f.calls++
	f.topic = topic
	f.payload = payload
	f.attrs = attributes
	return f.id, f.err
}

func newTestPublishService(pub *fakePublisher) (PublishService, *bytes.Buffer) {
	var buf bytes.Buffer
	svc := NewPublishService(pub, validator.New(validator.WithRequiredStructEnabled()), metrics.NewRegistry(), zerolog.New(&buf))
	return svc, &buf
}

func TestPublishMissingTopic(t *testing.T) {
	for _, req := range []*dto.PublishRequest{
		nil,
		{},
		{Message: "hello"},
		{Topic: "", Message: "hello", Attributes: map[string]string{"k": "v"}},
	} {
		pub := &fakePublisher{}
		svc, _ := newTestPublishService(pub)

		_, err := svc.Publish(context.Background(), req)
		if !errors.Is(err, ErrTopicRequired) {
			t.Fatalf("request %+v: expected ErrTopicRequired, got %v", req, err)
		}
		if !strings.Contains(err.Error(), "Topic not provided") {
			t.Errorf("unexpected error text %q", err.Error())
		}
		if pub.calls != 0 {
			t.Errorf("publisher must not be called, got %d calls", pub.calls)
		}
	}
}

func TestPublishMissingMessage(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestPublishService(pub)

	_, err := svc.Publish(context.Background(), &dto.PublishRequest{Topic: "t"})
	if !errors.Is(err, ErrMessageRequired) {
		t.Fatalf("expected ErrMessageRequired, got %v", err)
	}
	if !strings.Contains(err.Error(), "Message not provided") {
		t.Errorf("unexpected error text %q", err.Error())
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "message" {
		t.Errorf("expected ValidationError on field message, got %#v", err)
	}
	if pub.calls != 0 {
		t.Errorf("publisher must not be called, got %d calls", pub.calls)
	}
}

func TestPublishForwardsPayloadAndAttributes(t *testing.T) {
	pub := &fakePublisher{id: "42"}
	svc, buf := newTestPublishService(pub)

	id, err := svc.Publish(context.Background(), &dto.PublishRequest{
		Topic:      "t",
		Message:    "hello",
		Attributes: map[string]string{"key": "val"},
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "42" {
		t.Errorf("expected message ID 42, got %q", id)
	}
	if pub.calls != 1 || pub.topic != "t" {
		t.Fatalf("expected one call on topic t, got %d on %q", pub.calls, pub.topic)
	}
	if !bytes.Equal(pub.payload, []byte("hello")) {
		t.Errorf("expected payload %q, got %q", "hello", pub.payload)
	}
	if diff := cmp.Diff(map[string]string{"key": "val"}, pub.attrs); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), `"messageId":"42"`) {
		t.Errorf("expected message ID in log, got %q", buf.String())
	}
}

func TestPublishWithoutAttributes(t *testing.T) {
	pub := &fakePublisher{id: "1"}
	svc, _ := newTestPublishService(pub)

	if _, err := svc.Publish(context.Background(), &dto.PublishRequest{Topic: "t", Message: "héllo"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if pub.attrs != nil {
		t.Errorf("expected nil attributes, got %v", pub.attrs)
	}
	if string(pub.payload) != "héllo" {
		t.Errorf("expected UTF-8 payload, got %q", pub.payload)
	}
}

func TestPublishFailureIsPropagated(t *testing.T) {
	brokerErr := errors.New("failed to publish message to topic t: rpc error: code = NotFound")
	pub := &fakePublisher{err: brokerErr}
	svc, buf := newTestPublishService(pub)

	_, err := svc.Publish(context.Background(), &dto.PublishRequest{Topic: "t", Message: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *PublishError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PublishError, got %T", err)
	}
	if perr.Topic != "t" {
		t.Errorf("expected topic t, got %q", perr.Topic)
	}
	if !errors.Is(err, brokerErr) {
		t.Error("expected broker error to be wrapped")
	}
	if err.Error() != brokerErr.Error() {
		t.Errorf("expected error text %q, got %q", brokerErr.Error(), err.Error())
	}
	if !strings.Contains(buf.String(), "Failed to publish message") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}
