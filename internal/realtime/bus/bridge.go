package bus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
)

const publishTimeout = 2 * time.Second

// Bridge fans relay messages out to other instances. Local subscribers are
// always served first and synchronously; the bus is best effort.
type Bridge struct {
	local  *realtime.Relay
	bus    Bus
	origin string
	log    *logger.Logger
}

func NewBridge(local *realtime.Relay, b Bus, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Nop()
	}
	return &Bridge{
		local:  local,
		bus:    b,
		origin: uuid.NewString(),
		log:    log.With("component", "RelayBridge"),
	}
}

func (br *Bridge) Origin() string { return br.origin }

func (br *Bridge) Subscribe(sessionID string, cb realtime.Callback) func() {
	return br.local.Subscribe(sessionID, cb)
}

func (br *Bridge) Publish(sessionID string, msg realtime.Message) {
	br.local.Publish(sessionID, msg)
	if br.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	env := Envelope{Origin: br.origin, SessionID: sessionID, Message: msg}
	if err := br.bus.Publish(ctx, env); err != nil {
		br.log.Warn("Relay bus publish failed", "session_id", sessionID, "error", err)
	}
}

// Start delivers envelopes from other instances to local subscribers.
func (br *Bridge) Start(ctx context.Context) error {
	if br.bus == nil {
		return nil
	}
	return br.bus.StartForwarder(ctx, func(env Envelope) {
		if env.Origin == br.origin || env.SessionID == "" {
			return
		}
		br.local.Publish(env.SessionID, env.Message)
	})
}
