package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillforge-backend/internal/http"
	"github.com/yungbote/skillforge-backend/internal/observability"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *gin.Engine {
	serviceName := ""
	if cfg.Telemetry.Enabled {
		serviceName = cfg.Telemetry.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:               log,
		ServiceName:       serviceName,
		AllowOrigins:      cfg.CORSOrigins,
		Metrics:           metrics,
		AuthMiddleware:    middleware.Auth,
		HealthHandler:     handlers.Health,
		CourseHandler:     handlers.Course,
		EnrollmentHandler: handlers.Enrollment,
		LessonHandler:     handlers.Lesson,
		EventHandler:      handlers.Event,
		ChatHandler:       handlers.Chat,
	})
}
