package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/skillforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/skillforge-backend/internal/http/middleware"
	"github.com/yungbote/skillforge-backend/internal/observability"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowOrigins   []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler     *httpH.HealthHandler
	CourseHandler     *httpH.CourseHandler
	EnrollmentHandler *httpH.EnrollmentHandler
	LessonHandler     *httpH.LessonHandler
	EventHandler      *httpH.EventHandler
	ChatHandler       *httpH.ChatHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Courses
		if cfg.CourseHandler != nil {
			api.GET("/courses/:id", cfg.CourseHandler.GetCourse)
		}

		// Enrollments
		if cfg.EnrollmentHandler != nil {
			api.POST("/courses/:id/enroll", cfg.EnrollmentHandler.Enroll)
			api.GET("/courses/:id/enrollment", cfg.EnrollmentHandler.GetForCourse)
			api.GET("/enrollments", cfg.EnrollmentHandler.List)
		}

		// Lessons
		if cfg.LessonHandler != nil {
			api.POST("/lessons/:id/complete", cfg.LessonHandler.CompleteLesson)
			api.POST("/lessons/:id/quiz", cfg.LessonHandler.SubmitQuiz)
		}

		// Analytics
		if cfg.EventHandler != nil {
			api.POST("/events", cfg.EventHandler.Ingest)
		}

		// Chat
		if cfg.ChatHandler != nil {
			api.POST("/chat/sessions", cfg.ChatHandler.StartSession)
			api.GET("/chat/sessions/:id", cfg.ChatHandler.GetSession)
			api.GET("/chat/sessions/:id/stream", cfg.ChatHandler.Stream)
		}
	}

	return r
}
