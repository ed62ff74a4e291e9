package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventTypeProgress = "progress"
	EventTypeChat     = "chat"
	EventTypeClient   = "client"
)

// Event is one analytics fact. EventID is a ULID shared by every sink the
// event is written to so downstream consumers can deduplicate.
type Event struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"-"`
	EventID        string         `gorm:"column:event_id;not null;uniqueIndex" json:"eventId"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"organizationId"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	EventType      string         `gorm:"column:event_type;not null;index" json:"eventType"`
	EventName      string         `gorm:"column:event_name;not null;index" json:"eventName"`
	Properties     datatypes.JSON `gorm:"column:properties;type:jsonb" json:"properties,omitempty"`
	SessionID      *string        `gorm:"column:session_id;index" json:"sessionId,omitempty"`
	Timestamp      time.Time      `gorm:"column:occurred_at;not null;index" json:"timestamp"`
	CreatedAt      time.Time      `gorm:"not null" json:"-"`
}

func (Event) TableName() string { return "analytics_event" }

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
