package ws

import (
	"context"
	"testing"

	"github.com/cipherstudio/cipherstudio/internal/port/messagequeue"
)

func TestRelayHandle_ScopedBroadcast(t *testing.T) {
	hub := NewHub("", nil)
	relay := NewRelay(nil, hub, nil)

	// No connections; the handler must still succeed and not panic.
	err := relay.handle(context.Background(), messagequeue.SubjectFileChanged,
		[]byte(`{"project_id":"p1","action":"add","path":"/src/New.jsx"}`))
	if err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
}

func TestRelayHandle_UnknownSubjectIgnored(t *testing.T) {
	relay := NewRelay(nil, NewHub("", nil), nil)

	err := relay.handle(context.Background(), "workspace.unrelated", []byte(`{}`))
	if err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
}

func TestRelayHandle_BadPayloadDropped(t *testing.T) {
	relay := NewRelay(nil, NewHub("", nil), nil)

	// Schema validation happens on the consume side of the queue, but the
	// relay must also tolerate garbage without crashing.
	err := relay.handle(context.Background(), messagequeue.SubjectCodeUpdated, []byte("not-json"))
	if err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
}
