package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EnrollmentStatus string

const (
	EnrollmentNotStarted EnrollmentStatus = "not_started"
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

// rank orders statuses so transitions can be checked as forward-only.
func (s EnrollmentStatus) rank() int {
	switch s {
	case EnrollmentInProgress:
		return 1
	case EnrollmentCompleted:
		return 2
	default:
		return 0
	}
}

// Enrollment is the per-user, per-course progress record.
type Enrollment struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizationId"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course" json:"userId"`
	CourseID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course" json:"courseId"`

	Status             EnrollmentStatus               `gorm:"column:status;not null;default:'not_started';index" json:"status"`
	ProgressPercentage int                            `gorm:"column:progress_percentage;not null;default:0" json:"progressPercentage"`
	CompletedLessonIDs datatypes.JSONSlice[uuid.UUID] `gorm:"column:completed_lesson_ids" json:"completedLessonIds"`
	CurrentLessonID    *uuid.UUID                     `gorm:"type:uuid;column:current_lesson_id" json:"currentLessonId,omitempty"`
	TimeSpentSeconds   int64                          `gorm:"column:time_spent_seconds;not null;default:0" json:"timeSpentSeconds"`

	StartedAt   *time.Time `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`

	Version int `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Enrollment) TableName() string { return "enrollment" }

func (e *Enrollment) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = EnrollmentNotStarted
	}
	return nil
}

func (e *Enrollment) HasCompleted(lessonID uuid.UUID) bool {
	if e == nil {
		return false
	}
	for _, id := range e.CompletedLessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no mutable state with e.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}
	out := *e
	out.CompletedLessonIDs = append(datatypes.JSONSlice[uuid.UUID](nil), e.CompletedLessonIDs...)
	if e.CurrentLessonID != nil {
		id := *e.CurrentLessonID
		out.CurrentLessonID = &id
	}
	if e.StartedAt != nil {
		t := *e.StartedAt
		out.StartedAt = &t
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// LessonProgress is the primary write of a lesson completion.
type LessonProgress struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizationId"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_progress_user_lesson" json:"userId"`
	LessonID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_progress_user_lesson" json:"lessonId"`
	CourseID       uuid.UUID `gorm:"type:uuid;not null;index" json:"courseId"`

	TimeSpentSeconds int64     `gorm:"column:time_spent_seconds;not null;default:0" json:"timeSpentSeconds"`
	CompletedAt      time.Time `gorm:"column:completed_at;not null" json:"completedAt"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }

func (p *LessonProgress) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
