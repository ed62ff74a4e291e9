package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillforge-backend/internal/http/response"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/services"
)

const maxEventsBody = 1 << 20

type EventHandler struct {
	log       *logger.Logger
	analytics services.AnalyticsService
}

func NewEventHandler(log *logger.Logger, analytics services.AnalyticsService) *EventHandler {
	return &EventHandler{
		log:       log.With("handler", "EventHandler"),
		analytics: analytics,
	}
}

type ingestEventsRequest struct {
	Events []services.ClientEventInput `json:"events"`
}

// Ingest accepts {"events":[...]}, a bare array or a single event object.
func (h *EventHandler) Ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEventsBody)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_body", errors.New("request body is empty"))
		return
	}
	inputs, err := decodeEvents(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	n, err := h.analytics.Ingest(c.Request.Context(), inputs)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"ingested": n})
}

func decodeEvents(raw []byte) ([]services.ClientEventInput, error) {
	switch raw[0] {
	case '[':
		var list []services.ClientEventInput
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var env ingestEventsRequest
		if err := json.Unmarshal(raw, &env); err == nil && env.Events != nil {
			return env.Events, nil
		}
		var single services.ClientEventInput
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		if single.EventName == "" {
			return nil, errors.New("eventName is required")
		}
		return []services.ClientEventInput{single}, nil
	}
	return nil, errors.New("body must be a JSON object or array")
}
