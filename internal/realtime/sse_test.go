package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSSEClientServeWritesFramesUntilDone(t *testing.T) {
	r := New(mustTestLogger(t))
	session := uuid.NewString()
	client := Attach(r, session, mustTestLogger(t))
	defer client.Close()

	req := httptest.NewRequest("GET", "/stream", nil)
	rec := httptest.NewRecorder()
	served := make(chan struct{})
	go func() {
		client.Serve(rec, req, time.Hour)
		close(served)
	}()

	r.Publish(session, Message{Type: MessageChunk, Data: "tok"})
	r.Publish(session, Message{Type: MessageDone})

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after done")
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data: {"type":"chunk","data":"tok"}`) {
		t.Fatalf("missing chunk frame in %q", body)
	}
	if !strings.Contains(body, `data: {"type":"done"}`) {
		t.Fatalf("missing done frame in %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %s", ct)
	}
}

func TestSSEClientCloseUnsubscribes(t *testing.T) {
	r := New(mustTestLogger(t))
	session := uuid.NewString()
	client := Attach(r, session, mustTestLogger(t))
	if r.Subscribers(session) != 1 {
		t.Fatalf("expected one subscriber")
	}
	client.Close()
	client.Close()
	if r.Subscribers(session) != 0 {
		t.Fatalf("expected no subscribers after close")
	}
	// publishing after close must not block
	done := make(chan struct{})
	go func() {
		r.Publish(session, Message{Type: MessageChunk})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked after client close")
	}
}

func TestSSEClientServeStopsOnContextCancel(t *testing.T) {
	r := New(mustTestLogger(t))
	client := Attach(r, uuid.NewString(), mustTestLogger(t))
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	served := make(chan struct{})
	go func() {
		client.Serve(rec, req, time.Hour)
		close(served)
	}()
	cancel()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
