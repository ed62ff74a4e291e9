package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
)

type Course struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizationId"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`
	Status      string `gorm:"column:status;not null;default:'draft';index" json:"status"`

	Modules []CourseModule `gorm:"foreignKey:CourseID;references:ID" json:"modules,omitempty"`

	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string { return "course" }

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CourseModule struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"courseId"`
	Title    string    `gorm:"column:title;not null" json:"title"`
	Order    int       `gorm:"column:sort_order;not null;default:0" json:"order"`

	Lessons []Lesson `gorm:"foreignKey:ModuleID;references:ID" json:"lessons,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (CourseModule) TableName() string { return "course_module" }

func (m *CourseModule) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

const (
	LessonKindContent = "content"
	LessonKindQuiz    = "quiz"
)

type Lesson struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID uuid.UUID `gorm:"type:uuid;not null;index" json:"moduleId"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"courseId"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Kind        string `gorm:"column:kind;not null;default:'content'" json:"kind"`
	ContentType string `gorm:"column:content_type" json:"contentType,omitempty"` // video | article
	ContentURL  string `gorm:"column:content_url" json:"contentUrl,omitempty"`
	Order       int    `gorm:"column:sort_order;not null;default:0" json:"order"`

	// Quiz lessons only. The answer key is never serialized to clients.
	PassingScore  int                         `gorm:"column:passing_score;not null;default:0" json:"passingScore,omitempty"`
	QuizAnswerKey datatypes.JSONSlice[string] `gorm:"column:quiz_answer_key" json:"-"`

	CreatedAt time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Lesson) TableName() string { return "lesson" }

func (l *Lesson) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (l *Lesson) IsQuiz() bool { return l != nil && l.Kind == LessonKindQuiz }
