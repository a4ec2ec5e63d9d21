package pubsub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"pubsubfn/internal/config"

	ps "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// newFakePublisher starts an in-process Pub/Sub server and returns a
// publisher connected to it.
func newFakePublisher(t *testing.T) (*pstest.Server, *PubSubPublisher) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial fake server: %v", err)
	}
	pub, err := NewPublisher(context.Background(), &config.Config{GCPProjectID: "test-project"}, option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })
	return srv, pub
}

func TestNewPublisherInvalidProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	cfg := &config.Config{GCPProjectID: ""}
	if _, err := NewPublisher(context.Background(), cfg); err == nil {
		t.Fatal("expected error when project ID is empty")
	}
}

func TestPublishSendsPayloadAndAttributes(t *testing.T) {
	ctx := context.Background()
	srv, pub := newFakePublisher(t)
	if _, err := pub.client.CreateTopic(ctx, "t"); err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}

	id, err := pub.Publish(ctx, "t", []byte("hello"), map[string]string{"key": "val"})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty message ID")
	}

	msgs := srv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(msgs))
	}
	if string(msgs[0].Data) != "hello" {
		t.Errorf("expected data 'hello', got %q", msgs[0].Data)
	}
	if diff := cmp.Diff(map[string]string{"key": "val"}, msgs[0].Attributes); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishReusesTopicHandle(t *testing.T) {
	ctx := context.Background()
	_, pub := newFakePublisher(t)
	if _, err := pub.client.CreateTopic(ctx, "t"); err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := pub.Publish(ctx, "t", []byte("x"), nil); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}
	if n := len(pub.topics); n != 1 {
		t.Fatalf("expected 1 cached topic, got %d", n)
	}
}

func TestPublishUnknownTopicFails(t *testing.T) {
	_, pub := newFakePublisher(t)
	if _, err := pub.Publish(context.Background(), "missing", []byte("x"), nil); err == nil {
		t.Fatal("expected error publishing to a topic that does not exist")
	}
	if n := len(pub.topics); n != 0 {
		t.Fatalf("expected handle for missing topic to be dropped, got %d cached", n)
	}
}

func TestPublishManyUnknownTopicsKeepsCacheEmpty(t *testing.T) {
	ctx := context.Background()
	_, pub := newFakePublisher(t)

	for i := 0; i < 200; i++ {
		if _, err := pub.Publish(ctx, fmt.Sprintf("missing-%d", i), []byte("x"), nil); err == nil {
			t.Fatalf("expected error for missing-%d", i)
		}
	}
	if n := len(pub.topics); n != 0 {
		t.Fatalf("expected empty topic cache, got %d", n)
	}
}

func TestPublishCacheIsBounded(t *testing.T) {
	ctx := context.Background()
	srv, pub := newFakePublisher(t)

	total := maxCachedTopics + 5
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("t-%d", i)
		if _, err := pub.client.CreateTopic(ctx, id); err != nil {
			t.Fatalf("failed to create topic %s: %v", id, err)
		}
		if _, err := pub.Publish(ctx, id, []byte("x"), nil); err != nil {
			t.Fatalf("Publish to %s returned error: %v", id, err)
		}
	}
	if n := len(pub.topics); n != maxCachedTopics {
		t.Fatalf("expected %d cached topics, got %d", maxCachedTopics, n)
	}
	// Topics beyond the cap still publish through a short-lived handle.
	if n := len(srv.Messages()); n != total {
		t.Fatalf("expected %d published messages, got %d", total, n)
	}
}

func TestPublishAfterClose(t *testing.T) {
	_, pub := newFakePublisher(t)
	if err := pub.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	_, err := pub.Publish(context.Background(), "t", []byte("x"), nil)
	if !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
	// Closing twice is a no-op.
	if err := pub.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestPublishWithEmulator(t *testing.T) {
	emulator := os.Getenv("PUBSUB_EMULATOR_HOST")
	if emulator == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	cfg := &config.Config{GCPProjectID: "test-project", PubSubEmulatorHost: emulator}
	pub, err := NewPublisher(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create PubSubPublisher: %v", err)
	}
	defer pub.Close()

	topicName := "test-topic-" + time.Now().Format("150405.000000")
	topic, err := pub.client.CreateTopic(ctx, topicName)
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	sub, err := pub.client.CreateSubscription(ctx, topicName+"-sub", ps.SubscriptionConfig{Topic: topic})
	if err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}

	msgID, err := pub.Publish(ctx, topicName, []byte("hello-emulator"), map[string]string{"key": "val"})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if msgID == "" {
		t.Fatal("expected non-empty message ID")
	}

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan *ps.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			m.Ack()
			select {
			case c <- m:
			default:
			}
			cancel()
		})
	}()

	select {
	case m := <-c:
		if string(m.Data) != "hello-emulator" {
			t.Fatalf("expected message data 'hello-emulator', got '%s'", string(m.Data))
		}
		if m.Attributes["key"] != "val" {
			t.Fatalf("expected attribute key=val, got %v", m.Attributes)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
