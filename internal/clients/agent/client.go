package agent

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yungbote/skillforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

const streamPath = "/v1/chat/stream"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest is the body posted to the agent service.
type StreamRequest struct {
	SessionID string        `json:"sessionId"`
	Messages  []ChatMessage `json:"messages"`
}

// Client opens a streaming chat completion against the agent service.
// The returned body is a `data:` line stream the caller must close.
type Client interface {
	Stream(ctx context.Context, req StreamRequest) (io.ReadCloser, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds connection setup and response headers only; the body
	// is read for as long as the caller's context allows.
	Timeout time.Duration
}

type client struct {
	log  *logger.Logger
	http *resty.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("missing AGENT_BASE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Content-Type", "application/json")
	rc.SetTransport(newHeaderTimeoutTransport(cfg.Timeout))
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		rc.SetAuthToken(key)
	}

	return &client{
		log:  log.With("client", "AgentClient"),
		http: rc,
	}, nil
}

func (c *client) Stream(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	r := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true)
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		r.SetHeader("X-Request-ID", td.RequestID)
	}

	resp, err := r.Post(streamPath)
	if err != nil {
		return nil, fmt.Errorf("agent stream: %w", err)
	}
	body := resp.RawBody()
	if resp.StatusCode() >= 300 {
		msg := ""
		if body != nil {
			raw, _ := io.ReadAll(io.LimitReader(body, 4096))
			_ = body.Close()
			msg = strings.TrimSpace(string(raw))
		}
		c.log.Warn("Agent stream rejected", "session_id", req.SessionID, "status", resp.StatusCode())
		return nil, fmt.Errorf("agent stream: status %d: %s", resp.StatusCode(), msg)
	}
	if body == nil {
		return nil, fmt.Errorf("agent stream: empty body")
	}
	return body, nil
}
