package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	"github.com/yungbote/skillforge-backend/internal/data/repos"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type Repos struct {
	Course         repos.CourseRepo
	Enrollment     repos.EnrollmentRepo
	LessonProgress repos.LessonProgressRepo
	QuizAttempt    repos.QuizAttemptRepo
	AnalyticsEvent repos.AnalyticsEventRepo
	ChatSession    repos.ChatSessionRepo

	Tx aggregates.TxRunner
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Course:         repos.NewCourseRepo(db, log),
		Enrollment:     repos.NewEnrollmentRepo(db, log),
		LessonProgress: repos.NewLessonProgressRepo(db, log),
		QuizAttempt:    repos.NewQuizAttemptRepo(db, log),
		AnalyticsEvent: repos.NewAnalyticsEventRepo(db, log),
		ChatSession:    repos.NewChatSessionRepo(db, log),
		Tx:             aggregates.NewGormTxRunner(db),
	}
}
