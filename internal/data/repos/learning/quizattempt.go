package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type QuizAttemptRepo interface {
	Create(dbc dbctx.Context, a *types.QuizAttempt) error
	ListByUserAndLesson(dbc dbctx.Context, userID, lessonID uuid.UUID) ([]*types.QuizAttempt, error)
}

type quizAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) QuizAttemptRepo {
	return &quizAttemptRepo{db: db, log: baseLog.With("repo", "QuizAttemptRepo")}
}

func (r *quizAttemptRepo) Create(dbc dbctx.Context, a *types.QuizAttempt) error {
	if a == nil || a.UserID == uuid.Nil || a.LessonID == uuid.Nil {
		return aggregates.ValidationError("quiz attempt requires user and lesson")
	}
	if err := dbc.DB(r.db).Create(a).Error; err != nil {
		return aggregates.Classify("create quiz attempt", err)
	}
	return nil
}

func (r *quizAttemptRepo) ListByUserAndLesson(dbc dbctx.Context, userID, lessonID uuid.UUID) ([]*types.QuizAttempt, error) {
	var out []*types.QuizAttempt
	if err := dbc.DB(r.db).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, aggregates.Classify("list quiz attempts", err)
	}
	return out, nil
}
