package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

// LessonCompletion is the result of the lesson-complete trigger.
type LessonCompletion struct {
	Progress *types.LessonProgress
	Outcome  ProgressOutcome
}

type LessonService interface {
	CompleteLesson(ctx context.Context, lessonID uuid.UUID, timeSpentSeconds int64) (*LessonCompletion, error)
}

type lessonService struct {
	log      *logger.Logger
	courses  repos.CourseRepo
	progress repos.LessonProgressRepo
	tracker  ProgressTracker
	now      func() time.Time
}

func NewLessonService(
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	progress repos.LessonProgressRepo,
	tracker ProgressTracker,
) LessonService {
	return &lessonService{
		log:      baseLog.With("service", "LessonService"),
		courses:  courses,
		progress: progress,
		tracker:  tracker,
		now:      time.Now,
	}
}

func (s *lessonService) CompleteLesson(ctx context.Context, lessonID uuid.UUID, timeSpentSeconds int64) (*LessonCompletion, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if timeSpentSeconds < 0 {
		return nil, apierr.BadRequest("invalid_time_spent", errors.New("timeSpentSeconds must not be negative"))
	}
	lesson, err := loadLesson(ctx, s.courses, rd.OrganizationID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.IsQuiz() {
		return nil, apierr.BadRequest("quiz_required", errors.New("quiz lessons are completed by passing the quiz"))
	}

	p, err := recordLessonCompletion(dbctx.Context{Ctx: ctx}, s.progress, rd.OrganizationID, rd.UserID, lesson, timeSpentSeconds, s.now())
	if err != nil {
		s.log.Error("Record lesson completion failed", "lesson_id", lessonID.String(), "error", err)
		return nil, apierr.Internal("lesson_progress_failed", err)
	}

	outcome := s.tracker.Apply(ctx, ProgressTrigger{
		OrganizationID:   rd.OrganizationID,
		UserID:           rd.UserID,
		CourseID:         lesson.CourseID,
		LessonID:         lesson.ID,
		Source:           TriggerLessonComplete,
		TimeSpentSeconds: timeSpentSeconds,
	})
	return &LessonCompletion{Progress: p, Outcome: outcome}, nil
}

// loadLesson returns the lesson if its course belongs to orgID.
func loadLesson(ctx context.Context, courses repos.CourseRepo, orgID, lessonID uuid.UUID) (*types.Lesson, error) {
	dbc := dbctx.Context{Ctx: ctx}
	lesson, err := courses.GetLessonByID(dbc, lessonID)
	if err != nil {
		return nil, apierr.Internal("lesson_load_failed", err)
	}
	if lesson == nil {
		return nil, errLessonNotFound(lessonID)
	}
	course, err := courses.GetByID(dbc, lesson.CourseID)
	if err != nil {
		return nil, apierr.Internal("course_load_failed", err)
	}
	if course == nil || course.OrganizationID != orgID {
		return nil, errLessonNotFound(lessonID)
	}
	return lesson, nil
}

func errLessonNotFound(id uuid.UUID) error {
	return apierr.NotFound("lesson_not_found", fmt.Errorf("lesson %s not found", id))
}

func recordLessonCompletion(
	dbc dbctx.Context,
	repo repos.LessonProgressRepo,
	orgID, userID uuid.UUID,
	lesson *types.Lesson,
	timeSpentSeconds int64,
	now time.Time,
) (*types.LessonProgress, error) {
	p := &types.LessonProgress{
		OrganizationID:   orgID,
		UserID:           userID,
		LessonID:         lesson.ID,
		CourseID:         lesson.CourseID,
		TimeSpentSeconds: timeSpentSeconds,
		CompletedAt:      now.UTC(),
	}
	if err := repo.Upsert(dbc, p); err != nil {
		return nil, err
	}
	stored, err := repo.GetByUserAndLesson(dbc, userID, lesson.ID)
	if err != nil || stored == nil {
		return p, err
	}
	return stored, nil
}
