package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type LessonProgressRepo interface {
	// Upsert records a completion. Repeat completions keep the first
	// completed_at and accumulate time spent.
	Upsert(dbc dbctx.Context, p *types.LessonProgress) error
	GetByUserAndLesson(dbc dbctx.Context, userID, lessonID uuid.UUID) (*types.LessonProgress, error)
}

type lessonProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return &lessonProgressRepo{db: db, log: baseLog.With("repo", "LessonProgressRepo")}
}

func (r *lessonProgressRepo) Upsert(dbc dbctx.Context, p *types.LessonProgress) error {
	if p == nil || p.UserID == uuid.Nil || p.LessonID == uuid.Nil {
		return aggregates.ValidationError("lesson progress requires user and lesson")
	}
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now().UTC()
	}
	err := dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"time_spent_seconds": gorm.Expr("lesson_progress.time_spent_seconds + ?", p.TimeSpentSeconds),
			"updated_at":         time.Now().UTC(),
		}),
	}).Create(p).Error
	if err != nil {
		return aggregates.Classify("upsert lesson progress", err)
	}
	return nil
}

func (r *lessonProgressRepo) GetByUserAndLesson(dbc dbctx.Context, userID, lessonID uuid.UUID) (*types.LessonProgress, error) {
	var rows []*types.LessonProgress
	if err := dbc.DB(r.db).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, aggregates.Classify("get lesson progress", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
