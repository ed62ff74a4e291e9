package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type CourseService interface {
	// GetCourse returns the course with modules and lessons in course order.
	GetCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error)
}

type courseService struct {
	log     *logger.Logger
	courses repos.CourseRepo
}

func NewCourseService(baseLog *logger.Logger, courses repos.CourseRepo) CourseService {
	return &courseService{
		log:     baseLog.With("service", "CourseService"),
		courses: courses,
	}
}

func (cs *courseService) GetCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	course, err := cs.courses.GetWithLessons(dbctx.Context{Ctx: ctx}, courseID)
	if err != nil {
		cs.log.Error("GetCourse failed", "course_id", courseID.String(), "error", err)
		return nil, apierr.Internal("course_load_failed", err)
	}
	if course == nil || course.OrganizationID != rd.OrganizationID {
		return nil, errCourseNotFound(courseID)
	}
	sortCourse(course)
	return course, nil
}

func errCourseNotFound(id uuid.UUID) error {
	return apierr.NotFound("course_not_found", fmt.Errorf("course %s not found", id))
}

// sortCourse rewrites the module and lesson slices into course order.
func sortCourse(c *types.Course) {
	ordered := learning.FlattenLessons(c)
	byModule := make(map[uuid.UUID][]types.Lesson, len(c.Modules))
	for _, l := range ordered {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}
	seen := make(map[uuid.UUID]bool, len(c.Modules))
	mods := make([]types.CourseModule, 0, len(c.Modules))
	for _, l := range ordered {
		if seen[l.ModuleID] {
			continue
		}
		seen[l.ModuleID] = true
		for _, m := range c.Modules {
			if m.ID == l.ModuleID {
				m.Lessons = byModule[m.ID]
				mods = append(mods, m)
				break
			}
		}
	}
	// modules without lessons keep their relative position at the end
	for _, m := range c.Modules {
		if !seen[m.ID] {
			mods = append(mods, m)
		}
	}
	c.Modules = mods
}
