package realtime

import (
	"sync"

	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type MessageType string

const (
	MessageChunk MessageType = "chunk"
	MessageDone  MessageType = "done"
	MessageError MessageType = "error"
)

// Message is what travels over a session channel. Data carries the raw
// upstream payload of a chunk.
type Message struct {
	Type  MessageType `json:"type"`
	Data  string      `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func (m Message) Terminal() bool { return m.Type == MessageDone || m.Type == MessageError }

type Callback func(Message)

// Publisher is the producer side of a relay.
type Publisher interface {
	Publish(sessionID string, msg Message)
}

// Subscriber is the consumer side of a relay.
type Subscriber interface {
	Subscribe(sessionID string, cb Callback) (unsubscribe func())
}

type subscription struct {
	id uint64
	cb Callback
}

// Relay is an in-process publish/subscribe registry keyed by session id.
// Publish delivers synchronously to the callbacks registered at that moment,
// in registration order. Nothing is queued for absent subscribers.
type Relay struct {
	mu       sync.Mutex
	log      *logger.Logger
	nextID   uint64
	channels map[string][]subscription
}

func New(log *logger.Logger) *Relay {
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		log:      log.With("component", "SessionRelay"),
		channels: make(map[string][]subscription),
	}
}

// Subscribe registers cb for sessionID. The returned func removes exactly
// this registration and is safe to call more than once.
func (r *Relay) Subscribe(sessionID string, cb Callback) func() {
	if cb == nil || sessionID == "" {
		return func() {}
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.channels[sessionID] = append(r.channels[sessionID], subscription{id: id, cb: cb})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(sessionID, id) })
	}
}

func (r *Relay) remove(sessionID string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.channels[sessionID]
	kept := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(r.channels, sessionID)
		return
	}
	r.channels[sessionID] = kept
}

// Publish invokes every callback currently registered for sessionID.
// Callbacks run outside the lock, so they may subscribe or unsubscribe.
func (r *Relay) Publish(sessionID string, msg Message) {
	r.mu.Lock()
	subs := append([]subscription(nil), r.channels[sessionID]...)
	r.mu.Unlock()

	for _, s := range subs {
		r.deliver(sessionID, s, msg)
	}
}

func (r *Relay) deliver(sessionID string, s subscription, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("Relay subscriber panicked", "session_id", sessionID, "subscription", s.id, "panic", rec)
		}
	}()
	s.cb(msg)
}

// Subscribers reports how many callbacks are registered for sessionID.
func (r *Relay) Subscribers(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels[sessionID])
}
