package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/skillforge-backend/internal/clients/agent"
	"github.com/yungbote/skillforge-backend/internal/clients/rabbitmq"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime/bus"
)

// Clients holds the optional outbound integrations. A nil field means the
// integration is not configured.
type Clients struct {
	Agent     agent.Client
	Analytics *rabbitmq.Publisher
	RelayBus  bus.Bus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Agent
	if strings.TrimSpace(cfg.Agent.BaseURL) != "" {
		c, err := agent.NewClient(log, agent.Config{
			BaseURL: cfg.Agent.BaseURL,
			APIKey:  cfg.Agent.APIKey,
			Timeout: cfg.Agent.ConnectTimeout,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init agent client: %w", err)
		}
		out.Agent = c
	} else {
		log.Warn("AGENT_BASE_URL not set; chat sessions are disabled")
	}

	// RabbitMQ
	if strings.TrimSpace(cfg.RabbitMQ.URL) != "" {
		p, err := rabbitmq.NewPublisher(log, cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			return Clients{}, fmt.Errorf("init analytics publisher: %w", err)
		}
		out.Analytics = p
	}

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := bus.NewRedisBus(log, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis relay bus: %w", err)
		}
		out.RelayBus = b
	}

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.RelayBus != nil {
		_ = c.RelayBus.Close()
	}
	if c.Analytics != nil {
		_ = c.Analytics.Close()
	}
}
