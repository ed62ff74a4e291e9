package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
)

// SeedCourse creates a published course with one module per entry of
// lessonsPerModule and returns it with its lesson ids in course order.
func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID uuid.UUID, lessonsPerModule ...int) (*types.Course, []uuid.UUID) {
	tb.Helper()
	course := &types.Course{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Title:          "Onboarding",
		Status:         learning.CourseStatusPublished,
	}
	var ordered []uuid.UUID
	for mi, n := range lessonsPerModule {
		mod := types.CourseModule{ID: uuid.New(), CourseID: course.ID, Title: fmt.Sprintf("Module %d", mi+1), Order: mi + 1}
		for li := 0; li < n; li++ {
			l := types.Lesson{
				ID:       uuid.New(),
				ModuleID: mod.ID,
				CourseID: course.ID,
				Title:    fmt.Sprintf("Lesson %d.%d", mi+1, li+1),
				Kind:     learning.LessonKindContent,
				Order:    li + 1,
			}
			mod.Lessons = append(mod.Lessons, l)
			ordered = append(ordered, l.ID)
		}
		course.Modules = append(course.Modules, mod)
	}
	if err := tx.WithContext(ctx).Create(course).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return course, ordered
}

// SeedQuizLesson appends a quiz lesson to the last module of the course.
func SeedQuizLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, course *types.Course, key []string, passingScore int) *types.Lesson {
	tb.Helper()
	if len(course.Modules) == 0 {
		tb.Fatalf("seed quiz lesson: course has no modules")
	}
	mod := course.Modules[len(course.Modules)-1]
	l := &types.Lesson{
		ID:            uuid.New(),
		ModuleID:      mod.ID,
		CourseID:      course.ID,
		Title:         "Quiz",
		Kind:          learning.LessonKindQuiz,
		Order:         len(mod.Lessons) + 1,
		PassingScore:  passingScore,
		QuizAnswerKey: key,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed quiz lesson: %v", err)
	}
	return l
}

func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, course *types.Course, userID uuid.UUID) *types.Enrollment {
	tb.Helper()
	e := &types.Enrollment{
		ID:             uuid.New(),
		OrganizationID: course.OrganizationID,
		UserID:         userID,
		CourseID:       course.ID,
		Status:         learning.EnrollmentNotStarted,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}
