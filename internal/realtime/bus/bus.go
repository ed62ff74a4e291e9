package bus

import (
	"context"

	"github.com/yungbote/skillforge-backend/internal/realtime"
)

// Envelope is a relay message in transit between API instances. Origin is
// the id of the instance that produced it.
type Envelope struct {
	Origin    string           `json:"origin"`
	SessionID string           `json:"sessionId"`
	Message   realtime.Message `json:"message"`
}

type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	StartForwarder(ctx context.Context, onMsg func(env Envelope)) error
	Close() error
}
