package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

const DefaultQueue = "analytics.events"

// EventMessage is the analytics record as downstream consumers receive it.
type EventMessage struct {
	EventID        string          `json:"eventId"`
	OrganizationID string          `json:"organizationId"`
	UserID         string          `json:"userId"`
	EventType      string          `json:"eventType"`
	EventName      string          `json:"eventName"`
	Properties     json.RawMessage `json:"properties,omitempty"`
	SessionID      *string         `json:"sessionId,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Publisher writes analytics events to a durable queue. The queue is
// declared with a retry queue that dead-letters back to it and a DLQ for
// rejected messages, so a consumer can use the same topology.
type Publisher struct {
	log   *logger.Logger
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

func NewPublisher(log *logger.Logger, url, queue string) (*Publisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("missing RABBITMQ_URL")
	}
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{
		log:   log.With("client", "AnalyticsPublisher", "queue", queue),
		conn:  conn,
		ch:    ch,
		queue: queue,
	}, nil
}

func declareTopology(ch *amqp.Channel, mainQ string) error {
	retryQ := mainQ + ".retry"
	dlqQ := mainQ + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlqQ, err)
	}
	// retry: message TTL then dead-letter back to main
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", retryQ, err)
	}
	if _, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", mainQ, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishEvent sends one event as a persistent JSON message.
func (p *Publisher) PublishEvent(ctx context.Context, msg EventMessage) error {
	if p == nil || p.ch == nil {
		return fmt.Errorf("analytics publisher not initialized")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.EventID,
			Type:         msg.EventName,
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
}
