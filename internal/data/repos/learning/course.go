package learning

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, course *types.Course) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	// GetWithLessons loads the course with every module and lesson attached.
	GetWithLessons(dbc dbctx.Context, id uuid.UUID) (*types.Course, error)
	GetLessonByID(dbc dbctx.Context, lessonID uuid.UUID) (*types.Lesson, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) error {
	if course == nil {
		return aggregates.ValidationError("course is required")
	}
	if err := dbc.DB(r.db).Create(course).Error; err != nil {
		return aggregates.Classify("create course", err)
	}
	return nil
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	var course types.Course
	err := dbc.DB(r.db).Where("id = ?", id).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, aggregates.Classify("get course", err)
	}
	return &course, nil
}

func (r *courseRepo) GetWithLessons(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	var course types.Course
	err := dbc.DB(r.db).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("id = ?", id).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, aggregates.Classify("get course with lessons", err)
	}
	return &course, nil
}

func (r *courseRepo) GetLessonByID(dbc dbctx.Context, lessonID uuid.UUID) (*types.Lesson, error) {
	var lesson types.Lesson
	err := dbc.DB(r.db).Where("id = ?", lessonID).First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, aggregates.Classify("get lesson", err)
	}
	return &lesson, nil
}
