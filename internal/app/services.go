package app

import (
	"github.com/yungbote/skillforge-backend/internal/observability"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
	"github.com/yungbote/skillforge-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Analytics  services.AnalyticsService
	Tracker    services.ProgressTracker
	Course     services.CourseService
	Enrollment services.EnrollmentService
	Lesson     services.LessonService
	Quiz       services.QuizService
	Chat       services.ChatService
}

func wireServices(
	log *logger.Logger,
	cfg Config,
	reposet Repos,
	clients Clients,
	relay realtime.Publisher,
	metrics *observability.Metrics,
) Services {
	log.Info("Wiring services...")

	var exporter services.EventExporter
	if clients.Analytics != nil {
		exporter = services.InstrumentExporter(clients.Analytics, metrics)
	}
	analytics := services.NewAnalyticsService(log, reposet.AnalyticsEvent, exporter)
	sink := services.InstrumentSink(analytics, metrics)

	tracker := services.InstrumentProgressTracker(
		services.NewProgressTracker(log, reposet.Course, reposet.Enrollment, sink, cfg.Progress.CASRetries),
		metrics,
	)

	return Services{
		Auth:       services.NewAuthService(log, cfg.JWTSecretKey),
		Analytics:  analytics,
		Tracker:    tracker,
		Course:     services.NewCourseService(log, reposet.Course),
		Enrollment: services.NewEnrollmentService(log, reposet.Course, reposet.Enrollment),
		Lesson:     services.NewLessonService(log, reposet.Course, reposet.LessonProgress, tracker),
		Quiz:       services.NewQuizService(log, reposet.Course, reposet.QuizAttempt, reposet.LessonProgress, tracker, reposet.Tx),
		Chat:       services.NewChatService(log, reposet.ChatSession, clients.Agent, relay, sink, cfg.Agent.StreamTimeout),
	}
}
