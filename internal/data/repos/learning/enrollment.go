package learning

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type EnrollmentRepo interface {
	// Create inserts a new enrollment. A second enrollment for the same
	// user and course fails with aggregates.ErrConflict.
	Create(dbc dbctx.Context, e *types.Enrollment) error
	GetByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Enrollment, error)
	ListByUser(dbc dbctx.Context, orgID, userID uuid.UUID) ([]*types.Enrollment, error)
	// SaveProgress writes the progress fields of e if the stored version is
	// still expectedVersion. On success e.Version and e.UpdatedAt are advanced.
	SaveProgress(dbc dbctx.Context, e *types.Enrollment, expectedVersion int) (bool, error)
}

type enrollmentRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	guard aggregates.CASGuard
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{
		db:    db,
		log:   baseLog.With("repo", "EnrollmentRepo"),
		guard: aggregates.NewCASGuard(db),
	}
}

func (r *enrollmentRepo) Create(dbc dbctx.Context, e *types.Enrollment) error {
	if e == nil || e.UserID == uuid.Nil || e.CourseID == uuid.Nil {
		return aggregates.ValidationError("enrollment requires user and course")
	}
	if err := dbc.DB(r.db).Create(e).Error; err != nil {
		return aggregates.Classify("create enrollment", err)
	}
	return nil
}

func (r *enrollmentRepo) GetByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.Enrollment, error) {
	var e types.Enrollment
	err := dbc.DB(r.db).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, aggregates.Classify("get enrollment", err)
	}
	return &e, nil
}

func (r *enrollmentRepo) ListByUser(dbc dbctx.Context, orgID, userID uuid.UUID) ([]*types.Enrollment, error) {
	var out []*types.Enrollment
	if err := dbc.DB(r.db).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, aggregates.Classify("list enrollments", err)
	}
	return out, nil
}

func (r *enrollmentRepo) SaveProgress(dbc dbctx.Context, e *types.Enrollment, expectedVersion int) (bool, error) {
	if e == nil {
		return false, aggregates.ValidationError("enrollment is required")
	}
	// a map update has no schema, so gorm will not stamp updated_at itself
	stamped := time.Now().UTC()
	ok, err := r.guard.UpdateByVersion(dbc, types.Enrollment{}.TableName(), e.ID, expectedVersion, map[string]any{
		"status":               e.Status,
		"progress_percentage":  e.ProgressPercentage,
		"completed_lesson_ids": e.CompletedLessonIDs,
		"current_lesson_id":    e.CurrentLessonID,
		"time_spent_seconds":   e.TimeSpentSeconds,
		"started_at":           e.StartedAt,
		"completed_at":         e.CompletedAt,
		"updated_at":           stamped,
	})
	if err != nil {
		return false, err
	}
	if ok {
		e.Version = expectedVersion + 1
		e.UpdatedAt = stamped
	} else {
		r.log.Debug("Enrollment version moved", "enrollment_id", e.ID, "expected_version", expectedVersion)
	}
	return ok, nil
}
