package learning

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SkipReason explains why a progress recompute left the enrollment untouched.
type SkipReason string

const (
	SkipLessonAlreadyCompleted SkipReason = "lesson_already_completed"
	SkipLessonNotInCourse      SkipReason = "lesson_not_in_course"
	SkipEnrollmentNotFound     SkipReason = "enrollment_not_found"
	SkipCourseNotFound         SkipReason = "course_not_found"
)

const EventCourseCompleted = "course_completed"

// CourseCompletion is the payload of the course_completed analytics event.
type CourseCompletion struct {
	CompletedLessons int
	TotalLessons     int
	TimeSpentSeconds int64
	DaysElapsed      int
	StartedAt        time.Time
	CompletedAt      time.Time
}

func (c CourseCompletion) Properties() map[string]any {
	return map[string]any{
		"completedLessons": c.CompletedLessons,
		"totalLessons":     c.TotalLessons,
		"timeSpentSeconds": c.TimeSpentSeconds,
		"daysElapsed":      c.DaysElapsed,
		"startedAt":        c.StartedAt.UTC().Format(time.RFC3339),
		"completedAt":      c.CompletedAt.UTC().Format(time.RFC3339),
	}
}

// RecomputeResult is either an updated enrollment copy or a skip reason.
type RecomputeResult struct {
	Enrollment *Enrollment
	Skipped    SkipReason
	// Completion is set only on the recompute that moved the enrollment to completed.
	Completion *CourseCompletion
}

func (r RecomputeResult) Updated() bool { return r.Skipped == "" && r.Enrollment != nil }

// FlattenLessons returns every lesson of the course in course order: modules
// by Order, then lessons by Order within each module. Ties fall back to id.
func FlattenLessons(c *Course) []Lesson {
	if c == nil {
		return nil
	}
	modules := append([]CourseModule(nil), c.Modules...)
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Order != modules[j].Order {
			return modules[i].Order < modules[j].Order
		}
		return modules[i].ID.String() < modules[j].ID.String()
	})
	var out []Lesson
	for _, m := range modules {
		lessons := append([]Lesson(nil), m.Lessons...)
		sort.SliceStable(lessons, func(i, j int) bool {
			if lessons[i].Order != lessons[j].Order {
				return lessons[i].Order < lessons[j].Order
			}
			return lessons[i].ID.String() < lessons[j].ID.String()
		})
		out = append(out, lessons...)
	}
	return out
}

// Percentage is round(done/total*100), or 0 for an empty course.
func Percentage(done, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(done) * 100 / float64(total)))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// RecomputeEnrollmentProgress applies one lesson completion to a copy of the
// enrollment. The input is never mutated.
func RecomputeEnrollmentProgress(e *Enrollment, c *Course, lessonID uuid.UUID, now time.Time) RecomputeResult {
	if e == nil {
		return RecomputeResult{Skipped: SkipEnrollmentNotFound}
	}
	if c == nil {
		return RecomputeResult{Skipped: SkipCourseNotFound}
	}
	if e.HasCompleted(lessonID) {
		return RecomputeResult{Skipped: SkipLessonAlreadyCompleted}
	}

	ordered := FlattenLessons(c)
	inCourse := make(map[uuid.UUID]struct{}, len(ordered))
	for _, l := range ordered {
		inCourse[l.ID] = struct{}{}
	}
	if _, ok := inCourse[lessonID]; !ok {
		return RecomputeResult{Skipped: SkipLessonNotInCourse}
	}

	next := e.Clone()
	next.CompletedLessonIDs = append(next.CompletedLessonIDs, lessonID)

	// ids of lessons since removed from the course stay in the set but do not count
	done := 0
	completed := make(map[uuid.UUID]struct{}, len(next.CompletedLessonIDs))
	for _, id := range next.CompletedLessonIDs {
		completed[id] = struct{}{}
	}
	for id := range completed {
		if _, ok := inCourse[id]; ok {
			done++
		}
	}
	total := len(ordered)
	next.ProgressPercentage = Percentage(done, total)

	if next.Status == "" || next.Status == EnrollmentNotStarted {
		next.Status = EnrollmentInProgress
		if next.StartedAt == nil {
			started := now
			next.StartedAt = &started
		}
	}

	next.CurrentLessonID = nil
	for _, l := range ordered {
		if _, ok := completed[l.ID]; !ok {
			id := l.ID
			next.CurrentLessonID = &id
			break
		}
	}

	res := RecomputeResult{Enrollment: next}
	if next.ProgressPercentage == 100 && next.Status.rank() < EnrollmentCompleted.rank() {
		finished := now
		next.Status = EnrollmentCompleted
		next.CompletedAt = &finished
		res.Completion = &CourseCompletion{
			CompletedLessons: done,
			TotalLessons:     total,
			TimeSpentSeconds: next.TimeSpentSeconds,
			DaysElapsed:      daysBetween(next.StartedAt, finished),
			CompletedAt:      finished,
		}
		if next.StartedAt != nil {
			res.Completion.StartedAt = *next.StartedAt
		}
	}
	return res
}

func daysBetween(start *time.Time, end time.Time) int {
	if start == nil || end.Before(*start) {
		return 0
	}
	return int(end.Sub(*start) / (24 * time.Hour))
}
