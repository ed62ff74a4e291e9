package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type EnrollmentService interface {
	// Enroll creates a zeroed enrollment. created is false when the caller
	// was already enrolled and the existing record is returned.
	Enroll(ctx context.Context, courseID uuid.UUID) (e *types.Enrollment, created bool, err error)
	GetForCourse(ctx context.Context, courseID uuid.UUID) (*types.Enrollment, error)
	List(ctx context.Context) ([]*types.Enrollment, error)
}

type enrollmentService struct {
	log         *logger.Logger
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
}

func NewEnrollmentService(baseLog *logger.Logger, courses repos.CourseRepo, enrollments repos.EnrollmentRepo) EnrollmentService {
	return &enrollmentService{
		log:         baseLog.With("service", "EnrollmentService"),
		courses:     courses,
		enrollments: enrollments,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, courseID uuid.UUID) (*types.Enrollment, bool, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, false, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, false, apierr.Internal("course_load_failed", err)
	}
	if course == nil || course.OrganizationID != rd.OrganizationID {
		return nil, false, errCourseNotFound(courseID)
	}

	existing, err := s.enrollments.GetByUserAndCourse(dbc, rd.UserID, courseID)
	if err != nil {
		return nil, false, apierr.Internal("enrollment_load_failed", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	e := &types.Enrollment{
		OrganizationID: rd.OrganizationID,
		UserID:         rd.UserID,
		CourseID:       courseID,
		Status:         learning.EnrollmentNotStarted,
	}
	if err := s.enrollments.Create(dbc, e); err != nil {
		if errors.Is(err, aggregates.ErrConflict) {
			// lost a race with a concurrent enroll
			existing, getErr := s.enrollments.GetByUserAndCourse(dbc, rd.UserID, courseID)
			if getErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		s.log.Error("Enroll failed", "course_id", courseID.String(), "user_id", rd.UserID.String(), "error", err)
		return nil, false, apierr.Internal("enroll_failed", err)
	}
	s.log.Info("Enrolled", "course_id", courseID.String(), "user_id", rd.UserID.String())
	return e, true, nil
}

func (s *enrollmentService) GetForCourse(ctx context.Context, courseID uuid.UUID) (*types.Enrollment, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := s.enrollments.GetByUserAndCourse(dbctx.Context{Ctx: ctx}, rd.UserID, courseID)
	if err != nil {
		return nil, apierr.Internal("enrollment_load_failed", err)
	}
	if e == nil || e.OrganizationID != rd.OrganizationID {
		return nil, apierr.NotFound("enrollment_not_found", errors.New("not enrolled in course"))
	}
	return e, nil
}

func (s *enrollmentService) List(ctx context.Context) ([]*types.Enrollment, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.enrollments.ListByUser(dbctx.Context{Ctx: ctx}, rd.OrganizationID, rd.UserID)
	if err != nil {
		return nil, apierr.Internal("enrollment_list_failed", err)
	}
	if out == nil {
		out = []*types.Enrollment{}
	}
	return out, nil
}
