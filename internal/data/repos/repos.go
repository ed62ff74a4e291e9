package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/data/repos/analytics"
	"github.com/yungbote/skillforge-backend/internal/data/repos/chat"
	"github.com/yungbote/skillforge-backend/internal/data/repos/learning"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type CourseRepo = learning.CourseRepo
type EnrollmentRepo = learning.EnrollmentRepo
type LessonProgressRepo = learning.LessonProgressRepo
type QuizAttemptRepo = learning.QuizAttemptRepo

type AnalyticsEventRepo = analytics.EventRepo

type ChatSessionRepo = chat.SessionRepo
type ChatStreamEnd = chat.StreamEnd

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return learning.NewCourseRepo(db, baseLog)
}
func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return learning.NewEnrollmentRepo(db, baseLog)
}
func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return learning.NewLessonProgressRepo(db, baseLog)
}
func NewQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) QuizAttemptRepo {
	return learning.NewQuizAttemptRepo(db, baseLog)
}

func NewAnalyticsEventRepo(db *gorm.DB, baseLog *logger.Logger) AnalyticsEventRepo {
	return analytics.NewEventRepo(db, baseLog)
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
	return chat.NewSessionRepo(db, baseLog)
}
