package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillforge-backend/internal/http/response"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/services"
)

type EnrollmentHandler struct {
	log         *logger.Logger
	enrollments services.EnrollmentService
}

func NewEnrollmentHandler(log *logger.Logger, enrollments services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		log:         log.With("handler", "EnrollmentHandler"),
		enrollments: enrollments,
	}
}

// Enroll answers 201 for a new enrollment and 200 when one already exists.
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	e, created, err := h.enrollments.Enroll(c.Request.Context(), courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if created {
		response.RespondCreated(c, gin.H{"enrollment": e})
		return
	}
	response.RespondOK(c, gin.H{"enrollment": e})
}

func (h *EnrollmentHandler) GetForCourse(c *gin.Context) {
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	e, err := h.enrollments.GetForCourse(c.Request.Context(), courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": e})
}

func (h *EnrollmentHandler) List(c *gin.Context) {
	out, err := h.enrollments.List(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollments": out})
}
