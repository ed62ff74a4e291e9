package domain

import (
	"github.com/yungbote/skillforge-backend/internal/domain/analytics"
	"github.com/yungbote/skillforge-backend/internal/domain/chat"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
)

type (
	Course         = learning.Course
	CourseModule   = learning.CourseModule
	Lesson         = learning.Lesson
	Enrollment     = learning.Enrollment
	LessonProgress = learning.LessonProgress
	QuizAttempt    = learning.QuizAttempt

	AnalyticsEvent = analytics.Event

	ChatSession = chat.Session
)

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&learning.Course{},
		&learning.CourseModule{},
		&learning.Lesson{},
		&learning.Enrollment{},
		&learning.LessonProgress{},
		&learning.QuizAttempt{},
		&analytics.Event{},
		&chat.Session{},
	}
}
