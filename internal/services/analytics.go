package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"

	"github.com/yungbote/skillforge-backend/internal/clients/rabbitmq"
	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	domainanalytics "github.com/yungbote/skillforge-backend/internal/domain/analytics"
	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

const maxIngestBatch = 200

var eventNameRe = regexp.MustCompile(`^[a-z0-9_\.]{3,64}$`)

// TrackEvent is one analytics fact in the sink's shape.
type TrackEvent struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	EventType      string
	EventName      string
	Properties     map[string]any
	SessionID      *string
	Timestamp      time.Time
}

// ClientEventInput is an event reported by a client through the API.
type ClientEventInput struct {
	EventName  string         `json:"eventName" binding:"required"`
	Properties map[string]any `json:"properties,omitempty"`
	SessionID  *string        `json:"sessionId,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
}

// EventExporter ships persisted events to a downstream consumer.
type EventExporter interface {
	PublishEvent(ctx context.Context, msg rabbitmq.EventMessage) error
}

// AnalyticsSink is what producers of analytics facts depend on.
type AnalyticsSink interface {
	Track(ctx context.Context, ev TrackEvent) error
}

type AnalyticsService interface {
	AnalyticsSink
	Ingest(ctx context.Context, inputs []ClientEventInput) (int, error)
}

type analyticsService struct {
	log      *logger.Logger
	repo     repos.AnalyticsEventRepo
	exporter EventExporter
	now      func() time.Time
}

// NewAnalyticsService builds the sink. exporter may be nil.
func NewAnalyticsService(baseLog *logger.Logger, repo repos.AnalyticsEventRepo, exporter EventExporter) AnalyticsService {
	return &analyticsService{
		log:      baseLog.With("service", "AnalyticsService"),
		repo:     repo,
		exporter: exporter,
		now:      time.Now,
	}
}

func (s *analyticsService) Track(ctx context.Context, ev TrackEvent) error {
	row, err := s.buildRow(ev)
	if err != nil {
		return err
	}
	return s.store(ctx, []*types.AnalyticsEvent{row})
}

func (s *analyticsService) Ingest(ctx context.Context, inputs []ClientEventInput) (int, error) {
	rd, err := caller(ctx)
	if err != nil {
		return 0, err
	}
	if len(inputs) == 0 {
		return 0, nil
	}
	if len(inputs) > maxIngestBatch {
		return 0, apierr.BadRequest("too_many_events", fmt.Errorf("too many events (max %d)", maxIngestBatch))
	}
	rows := make([]*types.AnalyticsEvent, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(strings.ToLower(in.EventName))
		if !eventNameRe.MatchString(name) {
			return 0, apierr.BadRequest("invalid_event_name", fmt.Errorf("invalid event name at index %d", i))
		}
		ts := time.Time{}
		if in.Timestamp != nil {
			ts = *in.Timestamp
			if !validEventTime(ts) {
				return 0, apierr.BadRequest("invalid_timestamp", fmt.Errorf("timestamp out of range at index %d", i))
			}
		}
		row, err := s.buildRow(TrackEvent{
			OrganizationID: rd.OrganizationID,
			UserID:         rd.UserID,
			EventType:      domainanalytics.EventTypeClient,
			EventName:      name,
			Properties:     in.Properties,
			SessionID:      in.SessionID,
			Timestamp:      ts,
		})
		if err != nil {
			return 0, apierr.BadRequest("invalid_event", fmt.Errorf("event %d: %w", i, err))
		}
		rows = append(rows, row)
	}
	if err := s.store(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// validEventTime reports whether ts fits the millisecond range of a ULID.
func validEventTime(ts time.Time) bool {
	return !ts.Before(time.UnixMilli(0)) && !ts.After(ulid.Time(ulid.MaxTime()))
}

func (s *analyticsService) buildRow(ev TrackEvent) (*types.AnalyticsEvent, error) {
	if ev.UserID == uuid.Nil || ev.OrganizationID == uuid.Nil {
		return nil, fmt.Errorf("analytics event requires organization and user")
	}
	if strings.TrimSpace(ev.EventName) == "" {
		return nil, fmt.Errorf("analytics event requires a name")
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC()
	props := ev.Properties
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}
	id, err := ulid.New(ulid.Timestamp(ts), ulid.DefaultEntropy())
	if err != nil {
		return nil, fmt.Errorf("event id for %s: %w", ts.Format(time.RFC3339), err)
	}
	return &types.AnalyticsEvent{
		EventID:        id.String(),
		OrganizationID: ev.OrganizationID,
		UserID:         ev.UserID,
		EventType:      ev.EventType,
		EventName:      ev.EventName,
		Properties:     datatypes.JSON(raw),
		SessionID:      ev.SessionID,
		Timestamp:      ts,
	}, nil
}

func (s *analyticsService) store(ctx context.Context, rows []*types.AnalyticsEvent) error {
	if err := s.repo.Insert(dbctx.Context{Ctx: ctx}, rows...); err != nil {
		s.log.Error("Persist analytics events failed", "count", len(rows), "error", err)
		return fmt.Errorf("persist analytics events: %w", err)
	}
	if s.exporter == nil {
		return nil
	}
	for _, row := range rows {
		if err := s.exporter.PublishEvent(ctx, toEventMessage(row)); err != nil {
			// the row is durable; export is best effort
			s.log.Warn("Export analytics event failed", "event_id", row.EventID, "event_name", row.EventName, "error", err)
		}
	}
	return nil
}

func toEventMessage(row *types.AnalyticsEvent) rabbitmq.EventMessage {
	return rabbitmq.EventMessage{
		EventID:        row.EventID,
		OrganizationID: row.OrganizationID.String(),
		UserID:         row.UserID.String(),
		EventType:      row.EventType,
		EventName:      row.EventName,
		Properties:     json.RawMessage(row.Properties),
		SessionID:      row.SessionID,
		Timestamp:      row.Timestamp,
	}
}
