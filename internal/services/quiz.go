package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

const maxQuizAnswers = 500

// QuizSubmission is the result of grading one attempt. Outcome is nil when
// the attempt did not pass.
type QuizSubmission struct {
	Attempt *types.QuizAttempt
	Passed  bool
	Outcome *ProgressOutcome
}

type QuizService interface {
	SubmitQuiz(ctx context.Context, lessonID uuid.UUID, answers []string, timeSpentSeconds int64) (*QuizSubmission, error)
}

type quizService struct {
	log      *logger.Logger
	courses  repos.CourseRepo
	attempts repos.QuizAttemptRepo
	progress repos.LessonProgressRepo
	tracker  ProgressTracker
	tx       aggregates.TxRunner
	now      func() time.Time
}

func NewQuizService(
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	attempts repos.QuizAttemptRepo,
	progress repos.LessonProgressRepo,
	tracker ProgressTracker,
	tx aggregates.TxRunner,
) QuizService {
	return &quizService{
		log:      baseLog.With("service", "QuizService"),
		courses:  courses,
		attempts: attempts,
		progress: progress,
		tracker:  tracker,
		tx:       tx,
		now:      time.Now,
	}
}

func (s *quizService) SubmitQuiz(ctx context.Context, lessonID uuid.UUID, answers []string, timeSpentSeconds int64) (*QuizSubmission, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if len(answers) > maxQuizAnswers {
		return nil, apierr.BadRequest("too_many_answers", errors.New("too many answers"))
	}
	if timeSpentSeconds < 0 {
		return nil, apierr.BadRequest("invalid_time_spent", errors.New("timeSpentSeconds must not be negative"))
	}
	lesson, err := loadLesson(ctx, s.courses, rd.OrganizationID, lessonID)
	if err != nil {
		return nil, err
	}
	if !lesson.IsQuiz() {
		return nil, apierr.BadRequest("not_a_quiz", errors.New("lesson is not a quiz"))
	}

	correct, total, score := learning.GradeQuiz(lesson.QuizAnswerKey, answers)
	passed := total > 0 && score >= lesson.PassingScore
	attempt := &types.QuizAttempt{
		OrganizationID: rd.OrganizationID,
		UserID:         rd.UserID,
		LessonID:       lesson.ID,
		CourseID:       lesson.CourseID,
		Answers:        datatypes.JSONSlice[string](answers),
		Correct:        correct,
		Total:          total,
		Score:          score,
		Passed:         passed,
	}
	// the attempt and a passing lesson completion commit together
	err = s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := s.attempts.Create(dbc, attempt); err != nil {
			return err
		}
		if !passed {
			return nil
		}
		_, err := recordLessonCompletion(dbc, s.progress, rd.OrganizationID, rd.UserID, lesson, timeSpentSeconds, s.now())
		return err
	})
	if err != nil {
		s.log.Error("Record quiz attempt failed", "lesson_id", lessonID.String(), "passed", passed, "error", err)
		return nil, apierr.Internal("quiz_attempt_failed", err)
	}

	out := &QuizSubmission{Attempt: attempt, Passed: passed}
	if !passed {
		return out, nil
	}
	outcome := s.tracker.Apply(ctx, ProgressTrigger{
		OrganizationID:   rd.OrganizationID,
		UserID:           rd.UserID,
		CourseID:         lesson.CourseID,
		LessonID:         lesson.ID,
		Source:           TriggerQuizPass,
		TimeSpentSeconds: timeSpentSeconds,
	})
	out.Outcome = &outcome
	return out, nil
}
