package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillforge-backend/internal/http/response"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/services"
)

type LessonHandler struct {
	log     *logger.Logger
	lessons services.LessonService
	quizzes services.QuizService
}

func NewLessonHandler(log *logger.Logger, lessons services.LessonService, quizzes services.QuizService) *LessonHandler {
	return &LessonHandler{
		log:     log.With("handler", "LessonHandler"),
		lessons: lessons,
		quizzes: quizzes,
	}
}

type completeLessonRequest struct {
	TimeSpentSeconds int64 `json:"timeSpentSeconds" binding:"gte=0"`
}

// POST /api/lessons/:id/complete
func (h *LessonHandler) CompleteLesson(c *gin.Context) {
	lessonID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req completeLessonRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondBindError(c, err)
			return
		}
	}
	res, err := h.lessons.CompleteLesson(c.Request.Context(), lessonID, req.TimeSpentSeconds)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"lessonProgress": res.Progress,
		"outcome":        toOutcomeView(&res.Outcome),
	})
}

type submitQuizRequest struct {
	Answers          []string `json:"answers" binding:"required"`
	TimeSpentSeconds int64    `json:"timeSpentSeconds" binding:"gte=0"`
}

// POST /api/lessons/:id/quiz
func (h *LessonHandler) SubmitQuiz(c *gin.Context) {
	lessonID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	res, err := h.quizzes.SubmitQuiz(c.Request.Context(), lessonID, req.Answers, req.TimeSpentSeconds)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"attempt": res.Attempt,
		"passed":  res.Passed,
		"outcome": toOutcomeView(res.Outcome),
	})
}
