package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle"
	SessionStreaming SessionStatus = "streaming"
	SessionComplete  SessionStatus = "complete"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether the last stream for the session has finished.
func (s SessionStatus) Terminal() bool {
	return s == SessionComplete || s == SessionFailed
}

// AbandonedStreamError is recorded on a session whose producer never ended its stream.
const AbandonedStreamError = "stream abandoned"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ToolResult struct {
	Tool   string          `json:"tool"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Session is the durable conversation record. ToolResults holds the results
// of the most recent stream and is what polling clients read.
type Session struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organizationId"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"userId"`
	CourseID       *uuid.UUID `gorm:"type:uuid;index" json:"courseId,omitempty"`

	Status      SessionStatus                   `gorm:"column:status;not null;default:'idle';index" json:"status"`
	Turns       datatypes.JSONSlice[Turn]       `gorm:"column:turns" json:"turns"`
	ToolResults datatypes.JSONSlice[ToolResult] `gorm:"column:tool_results" json:"toolResults"`
	LastError   string                          `gorm:"column:last_error;type:text" json:"lastError,omitempty"`

	StreamStartedAt *time.Time `gorm:"column:stream_started_at" json:"streamStartedAt,omitempty"`
	StreamEndedAt   *time.Time `gorm:"column:stream_ended_at" json:"streamEndedAt,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Session) TableName() string { return "chat_session" }

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SessionIdle
	}
	return nil
}

// StreamStale reports whether the session is still marked streaming more than
// maxAge after the stream started. No live producer runs that long.
func (s *Session) StreamStale(now time.Time, maxAge time.Duration) bool {
	if s == nil || s.Status != SessionStreaming || s.StreamStartedAt == nil || maxAge <= 0 {
		return false
	}
	return now.Sub(*s.StreamStartedAt) > maxAge
}
