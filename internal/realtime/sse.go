package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

const (
	defaultClientBuffer = 64
	defaultSendTimeout  = 5 * time.Second
	DefaultHeartbeat    = 15 * time.Second
)

// SSEClient is one browser connection listening on a session channel.
type SSEClient struct {
	ID        uuid.UUID
	SessionID string
	Outbound  chan Message
	Logger    *logger.Logger

	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
	sendTimeout time.Duration
}

// Attach subscribes a new client to sessionID. The relay callback waits for
// buffer space up to a short timeout so a slow reader holds back the
// producer instead of silently losing chunks.
func Attach(sub Subscriber, sessionID string, log *logger.Logger) *SSEClient {
	if log == nil {
		log = logger.Nop()
	}
	c := &SSEClient{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Outbound:    make(chan Message, defaultClientBuffer),
		done:        make(chan struct{}),
		sendTimeout: defaultSendTimeout,
	}
	c.Logger = log.With("component", "SSEClient", "client_id", c.ID.String(), "session_id", sessionID)
	c.unsubscribe = sub.Subscribe(sessionID, c.enqueue)
	return c
}

func (c *SSEClient) enqueue(msg Message) {
	timer := time.NewTimer(c.sendTimeout)
	defer timer.Stop()
	select {
	case c.Outbound <- msg:
	case <-c.done:
	case <-timer.C:
		c.Logger.Warn("Dropping relay message; client not reading", "type", string(msg.Type))
	}
}

// Close unsubscribes the client. It is idempotent.
func (c *SSEClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
	})
}

// PrepareSSE sets streaming headers and returns the flusher.
func PrepareSSE(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := w.(http.Flusher)
	return flusher, ok
}

// WriteFrame writes one `data: <json>` frame.
func WriteFrame(w http.ResponseWriter, flusher http.Flusher, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// Serve streams the client's messages until a terminal message is written,
// the request context ends or the client is closed.
func (c *SSEClient) Serve(w http.ResponseWriter, r *http.Request, heartbeat time.Duration) {
	flusher, ok := PrepareSSE(w)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			c.Logger.Debug("SSE client context done", "err", ctx.Err())
			return
		case <-c.done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg := <-c.Outbound:
			if err := WriteFrame(w, flusher, msg); err != nil {
				c.Logger.Warn("Failed to write SSE frame", "error", err)
				return
			}
			if msg.Terminal() {
				return
			}
		}
	}
}
