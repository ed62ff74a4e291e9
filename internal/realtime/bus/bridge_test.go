package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
)

// memBus delivers every envelope to every forwarder synchronously.
type memBus struct {
	mu        sync.Mutex
	forwarder []func(Envelope)
	published []Envelope
	failWith  error
}

func (m *memBus) Publish(_ context.Context, env Envelope) error {
	m.mu.Lock()
	m.published = append(m.published, env)
	fwd := append([]func(Envelope){}, m.forwarder...)
	fail := m.failWith
	m.mu.Unlock()
	if fail != nil {
		return fail
	}
	for _, f := range fwd {
		f(env)
	}
	return nil
}

func (m *memBus) StartForwarder(_ context.Context, onMsg func(Envelope)) error {
	m.mu.Lock()
	m.forwarder = append(m.forwarder, onMsg)
	m.mu.Unlock()
	return nil
}

func (m *memBus) Close() error { return nil }

func TestBridgeDeliversAcrossInstancesOnce(t *testing.T) {
	shared := &memBus{}
	log := logger.Nop()
	a := NewBridge(realtime.New(log), shared, log)
	b := NewBridge(realtime.New(log), shared, log)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start b: %v", err)
	}

	var onA, onB []realtime.Message
	a.Subscribe("s1", func(m realtime.Message) { onA = append(onA, m) })
	b.Subscribe("s1", func(m realtime.Message) { onB = append(onB, m) })

	a.Publish("s1", realtime.Message{Type: realtime.MessageChunk, Data: "x"})

	if len(onA) != 1 {
		t.Fatalf("origin instance should deliver exactly once, got %d", len(onA))
	}
	if len(onB) != 1 || onB[0].Data != "x" {
		t.Fatalf("remote instance: %+v", onB)
	}
	if shared.published[0].Origin != a.Origin() {
		t.Fatalf("envelope origin: %s", shared.published[0].Origin)
	}
}

func TestBridgeBusFailureStillDeliversLocally(t *testing.T) {
	log := logger.Nop()
	br := NewBridge(realtime.New(log), &memBus{failWith: errors.New("redis down")}, log)
	got := 0
	br.Subscribe("s1", func(realtime.Message) { got++ })
	br.Publish("s1", realtime.Message{Type: realtime.MessageDone})
	if got != 1 {
		t.Fatalf("local delivery: want=1 got=%d", got)
	}
}

func TestBridgeWithoutBus(t *testing.T) {
	br := NewBridge(realtime.New(nil), nil, nil)
	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := 0
	br.Subscribe("s1", func(realtime.Message) { got++ })
	br.Publish("s1", realtime.Message{Type: realtime.MessageChunk})
	if got != 1 {
		t.Fatalf("got=%d", got)
	}
}
