package analytics

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type EventRepo interface {
	// Insert stores events, silently skipping any whose event_id already exists.
	Insert(dbc dbctx.Context, events ...*types.AnalyticsEvent) error
	ListByUser(dbc dbctx.Context, orgID, userID uuid.UUID, eventName string, limit int) ([]*types.AnalyticsEvent, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "AnalyticsEventRepo")}
}

func (r *eventRepo) Insert(dbc dbctx.Context, events ...*types.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	err := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&events).Error
	if err != nil {
		return aggregates.Classify("insert analytics events", err)
	}
	return nil
}

func (r *eventRepo) ListByUser(dbc dbctx.Context, orgID, userID uuid.UUID, eventName string, limit int) ([]*types.AnalyticsEvent, error) {
	q := dbc.DB(r.db).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Order("occurred_at DESC")
	if eventName != "" {
		q = q.Where("event_name = ?", eventName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.AnalyticsEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, aggregates.Classify("list analytics events", err)
	}
	return out, nil
}
