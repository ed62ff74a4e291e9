package app

import (
	httpH "github.com/yungbote/skillforge-backend/internal/http/handlers"
	"github.com/yungbote/skillforge-backend/internal/observability"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Course     *httpH.CourseHandler
	Enrollment *httpH.EnrollmentHandler
	Lesson     *httpH.LessonHandler
	Event      *httpH.EventHandler
	Chat       *httpH.ChatHandler
}

func wireHandlers(
	log *logger.Logger,
	cfg Config,
	services Services,
	relay realtime.Subscriber,
	metrics *observability.Metrics,
	checks map[string]httpH.ReadinessCheck,
) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(checks),
		Course:     httpH.NewCourseHandler(log, services.Course),
		Enrollment: httpH.NewEnrollmentHandler(log, services.Enrollment),
		Lesson:     httpH.NewLessonHandler(log, services.Lesson, services.Quiz),
		Event:      httpH.NewEventHandler(log, services.Analytics),
		Chat:       httpH.NewChatHandler(log, services.Chat, relay, metrics, cfg.Realtime.Heartbeat),
	}
}
