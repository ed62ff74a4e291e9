package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	domainanalytics "github.com/yungbote/skillforge-backend/internal/domain/analytics"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

const DefaultProgressCASRetries = 5

type TriggerSource string

const (
	TriggerLessonComplete TriggerSource = "lesson_complete"
	TriggerQuizPass       TriggerSource = "quiz_pass"
)

// ProgressTrigger is one lesson completion to fold into an enrollment.
type ProgressTrigger struct {
	OrganizationID   uuid.UUID
	UserID           uuid.UUID
	CourseID         uuid.UUID
	LessonID         uuid.UUID
	Source           TriggerSource
	TimeSpentSeconds int64
	SessionID        *string
}

type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// ProgressOutcome reports what a trigger did to the enrollment. Callers log
// it; it never fails their own write.
type ProgressOutcome struct {
	Status          OutcomeStatus
	SkipReason      learning.SkipReason
	Err             error
	Enrollment      *types.Enrollment
	CourseCompleted bool
	Attempts        int
}

// Reason is the skip reason, "conflict" for an exhausted CAS loop, or
// "error" for any other failure.
func (o ProgressOutcome) Reason() string {
	switch o.Status {
	case OutcomeSkipped:
		return string(o.SkipReason)
	case OutcomeFailed:
		if aggregates.IsConflict(o.Err) {
			return "conflict"
		}
		return "error"
	}
	return ""
}

type ProgressTracker interface {
	Apply(ctx context.Context, trig ProgressTrigger) ProgressOutcome
}

type progressTracker struct {
	log         *logger.Logger
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
	sink        AnalyticsSink
	maxAttempts int
	now         func() time.Time
}

// NewProgressTracker builds the tracker. sink may be nil, in which case
// completion events are only logged.
func NewProgressTracker(
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
	sink AnalyticsSink,
	maxAttempts int,
) ProgressTracker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultProgressCASRetries
	}
	return &progressTracker{
		log:         baseLog.With("service", "ProgressTracker"),
		courses:     courses,
		enrollments: enrollments,
		sink:        sink,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (t *progressTracker) Apply(ctx context.Context, trig ProgressTrigger) ProgressOutcome {
	log := t.log.With(
		"user_id", trig.UserID.String(),
		"course_id", trig.CourseID.String(),
		"lesson_id", trig.LessonID.String(),
		"source", string(trig.Source),
	)
	if trig.UserID == uuid.Nil || trig.CourseID == uuid.Nil || trig.LessonID == uuid.Nil {
		return t.failed(log, 0, aggregates.ValidationError("progress trigger requires user, course and lesson"))
	}

	dbc := dbctx.Context{Ctx: ctx}
	var course *types.Course
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		current, err := t.enrollments.GetByUserAndCourse(dbc, trig.UserID, trig.CourseID)
		if err != nil {
			return t.failed(log, attempt, fmt.Errorf("load enrollment: %w", err))
		}
		if current == nil {
			log.Info("Progress trigger skipped", "reason", learning.SkipEnrollmentNotFound)
			return ProgressOutcome{Status: OutcomeSkipped, SkipReason: learning.SkipEnrollmentNotFound, Attempts: attempt}
		}
		if course == nil {
			course, err = t.courses.GetWithLessons(dbc, trig.CourseID)
			if err != nil {
				return t.failed(log, attempt, fmt.Errorf("load course: %w", err))
			}
			if course == nil || course.OrganizationID != current.OrganizationID {
				log.Warn("Progress trigger skipped", "reason", learning.SkipCourseNotFound)
				return ProgressOutcome{Status: OutcomeSkipped, SkipReason: learning.SkipCourseNotFound, Enrollment: current, Attempts: attempt}
			}
		}

		working := current.Clone()
		if trig.TimeSpentSeconds > 0 {
			working.TimeSpentSeconds += trig.TimeSpentSeconds
		}
		res := learning.RecomputeEnrollmentProgress(working, course, trig.LessonID, t.now().UTC())
		if !res.Updated() {
			log.Debug("Progress trigger skipped", "reason", res.Skipped)
			return ProgressOutcome{Status: OutcomeSkipped, SkipReason: res.Skipped, Enrollment: current, Attempts: attempt}
		}

		ok, err := t.enrollments.SaveProgress(dbc, res.Enrollment, current.Version)
		if err != nil {
			return t.failed(log, attempt, fmt.Errorf("save progress: %w", err))
		}
		if !ok {
			log.Debug("Enrollment version moved; retrying", "attempt", attempt, "version", current.Version)
			continue
		}

		out := ProgressOutcome{Status: OutcomeApplied, Enrollment: res.Enrollment, Attempts: attempt}
		if res.Completion != nil {
			out.CourseCompleted = true
			t.emitCompletion(ctx, log, trig, res.Enrollment, res.Completion)
		}
		log.Debug("Progress applied",
			"progress_percentage", res.Enrollment.ProgressPercentage,
			"status", string(res.Enrollment.Status),
			"attempt", attempt,
		)
		return out
	}
	return t.failed(log, t.maxAttempts, aggregates.ConflictError(
		fmt.Sprintf("enrollment update lost %d compare-and-set attempts", t.maxAttempts),
	))
}

func (t *progressTracker) failed(log *logger.Logger, attempts int, err error) ProgressOutcome {
	if errors.Is(err, context.Canceled) {
		log.Warn("Progress trigger cancelled", "error", err)
	} else {
		log.Error("Progress trigger failed", "attempts", attempts, "error", err)
	}
	return ProgressOutcome{Status: OutcomeFailed, Err: err, Attempts: attempts}
}

func (t *progressTracker) emitCompletion(ctx context.Context, log *logger.Logger, trig ProgressTrigger, e *types.Enrollment, c *learning.CourseCompletion) {
	props := c.Properties()
	props["courseId"] = e.CourseID.String()
	props["enrollmentId"] = e.ID.String()
	props["lessonId"] = trig.LessonID.String()
	props["source"] = string(trig.Source)

	log.Info("Course completed",
		"enrollment_id", e.ID.String(),
		"completed_lessons", c.CompletedLessons,
		"total_lessons", c.TotalLessons,
		"days_elapsed", c.DaysElapsed,
	)
	if t.sink == nil {
		return
	}
	err := t.sink.Track(ctx, TrackEvent{
		OrganizationID: e.OrganizationID,
		UserID:         e.UserID,
		EventType:      domainanalytics.EventTypeProgress,
		EventName:      learning.EventCourseCompleted,
		Properties:     props,
		SessionID:      trig.SessionID,
		Timestamp:      c.CompletedAt,
	})
	if err != nil {
		// the enrollment is already completed; the event is not retried
		log.Error("Emit course_completed failed", "enrollment_id", e.ID.String(), "error", err)
	}
}
