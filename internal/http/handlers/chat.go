package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainchat "github.com/yungbote/skillforge-backend/internal/domain/chat"
	"github.com/yungbote/skillforge-backend/internal/http/response"
	"github.com/yungbote/skillforge-backend/internal/observability"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
	"github.com/yungbote/skillforge-backend/internal/services"
)

type ChatHandler struct {
	log       *logger.Logger
	chat      services.ChatService
	relay     realtime.Subscriber
	metrics   *observability.Metrics
	heartbeat time.Duration
}

func NewChatHandler(
	log *logger.Logger,
	chat services.ChatService,
	relay realtime.Subscriber,
	metrics *observability.Metrics,
	heartbeat time.Duration,
) *ChatHandler {
	if heartbeat <= 0 {
		heartbeat = realtime.DefaultHeartbeat
	}
	return &ChatHandler{
		log:       log.With("handler", "ChatHandler"),
		chat:      chat,
		relay:     relay,
		metrics:   metrics,
		heartbeat: heartbeat,
	}
}

type startChatRequest struct {
	SessionID *uuid.UUID `json:"sessionId"`
	CourseID  *uuid.UUID `json:"courseId"`
	Message   string     `json:"message" binding:"required"`
}

// POST /api/chat/sessions
func (h *ChatHandler) StartSession(c *gin.Context) {
	var req startChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBindError(c, err)
		return
	}
	sess, err := h.chat.Start(c.Request.Context(), services.StartChatInput{
		SessionID: req.SessionID,
		CourseID:  req.CourseID,
		Message:   req.Message,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"sessionId": sess.ID})
}

// GET /api/chat/sessions/:id
func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	sess, err := h.chat.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// GET /api/chat/sessions/:id/stream
//
// The client subscribes before the session is read, so a stream that ends in
// between is seen either on the relay or in the durable status.
func (h *ChatHandler) Stream(c *gin.Context) {
	sessionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	client := realtime.Attach(h.relay, sessionID.String(), h.log)
	defer client.Close()

	sess, err := h.chat.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}

	if sess.Status != domainchat.SessionStreaming {
		flusher, ok := realtime.PrepareSSE(c.Writer)
		if !ok {
			response.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", nil)
			return
		}
		c.Status(http.StatusOK)
		if err := realtime.WriteFrame(c.Writer, flusher, terminalMessage(sess)); err != nil {
			h.log.Warn("Write terminal frame failed", "session_id", sessionID, "error", err)
		}
		return
	}

	h.metrics.SSEClientConnected()
	defer h.metrics.SSEClientDisconnected()
	client.Serve(c.Writer, c.Request, h.heartbeat)
}

func terminalMessage(sess *domainchat.Session) realtime.Message {
	if sess.Status == domainchat.SessionFailed {
		msg := sess.LastError
		if msg == "" {
			msg = "stream failed"
		}
		return realtime.Message{Type: realtime.MessageError, Error: msg}
	}
	return realtime.Message{Type: realtime.MessageDone}
}
