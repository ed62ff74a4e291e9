package learning

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuizAttempt struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizationId"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index:idx_quiz_attempt_user_lesson" json:"userId"`
	LessonID       uuid.UUID `gorm:"type:uuid;not null;index:idx_quiz_attempt_user_lesson" json:"lessonId"`
	CourseID       uuid.UUID `gorm:"type:uuid;not null;index" json:"courseId"`

	Answers datatypes.JSONSlice[string] `gorm:"column:answers" json:"answers"`
	Correct int                         `gorm:"column:correct;not null;default:0" json:"correct"`
	Total   int                         `gorm:"column:total;not null;default:0" json:"total"`
	Score   int                         `gorm:"column:score;not null;default:0" json:"score"`
	Passed  bool                        `gorm:"column:passed;not null;default:false" json:"passed"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (QuizAttempt) TableName() string { return "quiz_attempt" }

func (a *QuizAttempt) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// GradeQuiz compares answers position by position (case-insensitive, trimmed)
// and returns the number correct, the key length and the rounded score.
func GradeQuiz(key []string, answers []string) (correct, total, score int) {
	total = len(key)
	if total == 0 {
		return 0, 0, 0
	}
	for i, want := range key {
		if i >= len(answers) {
			break
		}
		if strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(answers[i])) {
			correct++
		}
	}
	return correct, total, Percentage(correct, total)
}
