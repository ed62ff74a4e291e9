package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/clients/agent"
	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	domainanalytics "github.com/yungbote/skillforge-backend/internal/domain/analytics"
	domainchat "github.com/yungbote/skillforge-backend/internal/domain/chat"
	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
)

const (
	DefaultChatStreamTimeout = 5 * time.Minute
	maxChatMessageLen        = 16 * 1024
	persistTimeout           = 10 * time.Second
	// a streaming session older than the stream timeout plus this margin has no producer
	staleStreamMargin = time.Minute

	eventChatStreamCompleted = "chat_stream_completed"
	eventChatStreamFailed    = "chat_stream_failed"
)

type StartChatInput struct {
	SessionID *uuid.UUID
	CourseID  *uuid.UUID
	Message   string
}

type ChatService interface {
	// Start appends the user turn and launches the agent stream in the
	// background. It returns as soon as the session is marked streaming.
	Start(ctx context.Context, in StartChatInput) (*types.ChatSession, error)
	// Get returns the durable session record for polling clients.
	Get(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error)
	// Wait blocks until every background stream has finished or ctx ends.
	Wait(ctx context.Context) error
}

type chatService struct {
	log           *logger.Logger
	sessions      repos.ChatSessionRepo
	agent         agent.Client
	relay         realtime.Publisher
	sink          AnalyticsSink
	streamTimeout time.Duration
	now           func() time.Time
	wg            sync.WaitGroup
}

func NewChatService(
	baseLog *logger.Logger,
	sessions repos.ChatSessionRepo,
	agentClient agent.Client,
	relay realtime.Publisher,
	sink AnalyticsSink,
	streamTimeout time.Duration,
) ChatService {
	if streamTimeout <= 0 {
		streamTimeout = DefaultChatStreamTimeout
	}
	return &chatService{
		log:           baseLog.With("service", "ChatService"),
		sessions:      sessions,
		agent:         agentClient,
		relay:         relay,
		sink:          sink,
		streamTimeout: streamTimeout,
		now:           time.Now,
	}
}

func (s *chatService) Start(ctx context.Context, in StartChatInput) (*types.ChatSession, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, apierr.BadRequest("empty_message", errors.New("message is required"))
	}
	if len(msg) > maxChatMessageLen {
		return nil, apierr.BadRequest("message_too_long", fmt.Errorf("message exceeds %d bytes", maxChatMessageLen))
	}
	if s.agent == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "agent_unavailable", errors.New("chat agent is not configured"))
	}

	dbc := dbctx.Context{Ctx: ctx}
	var sessionID uuid.UUID
	if in.SessionID != nil && *in.SessionID != uuid.Nil {
		existing, err := s.owned(ctx, rd, *in.SessionID)
		if err != nil {
			return nil, err
		}
		sessionID = existing.ID
	} else {
		sess := &types.ChatSession{
			OrganizationID: rd.OrganizationID,
			UserID:         rd.UserID,
			CourseID:       in.CourseID,
			Status:         domainchat.SessionIdle,
		}
		if err := s.sessions.Create(dbc, sess); err != nil {
			s.log.Error("Create chat session failed", "user_id", rd.UserID.String(), "error", err)
			return nil, apierr.Internal("chat_session_create_failed", err)
		}
		sessionID = sess.ID
	}

	started, err := s.sessions.BeginStream(dbc, sessionID, domainchat.Turn{
		Role:      domainchat.RoleUser,
		Content:   msg,
		CreatedAt: s.now().UTC(),
	}, s.staleAfter())
	if err != nil {
		if aggregates.IsConflict(err) {
			return nil, apierr.Conflict("stream_in_progress", err)
		}
		return nil, apierr.Internal("chat_stream_start_failed", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.produce(ctxutil.Detach(ctx), started)
	}()
	return started, nil
}

func (s *chatService) Get(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, error) {
	rd, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.owned(ctx, rd, sessionID)
}

func (s *chatService) owned(ctx context.Context, rd *ctxutil.RequestData, sessionID uuid.UUID) (*types.ChatSession, error) {
	sess, err := s.sessions.GetByID(dbctx.Context{Ctx: ctx}, sessionID)
	if err != nil {
		return nil, apierr.Internal("chat_session_load_failed", err)
	}
	if sess == nil || sess.UserID != rd.UserID || sess.OrganizationID != rd.OrganizationID {
		return nil, apierr.NotFound("chat_session_not_found", fmt.Errorf("chat session %s not found", sessionID))
	}
	s.settleStale(ctx, sess)
	return sess, nil
}

func (s *chatService) staleAfter() time.Duration { return s.streamTimeout + staleStreamMargin }

// settleStale fails a session left streaming by a producer that is gone, so
// pollers and stream subscribers see a terminal state. The returned view is
// failed even when the write does not go through.
func (s *chatService) settleStale(ctx context.Context, sess *types.ChatSession) {
	now := s.now().UTC()
	if !sess.StreamStale(now, s.staleAfter()) {
		return
	}
	id := sess.ID.String()
	s.log.Warn("Failing abandoned chat stream", "session_id", id, "stream_started_at", sess.StreamStartedAt)
	err := s.sessions.EndStream(dbctx.Context{Ctx: ctx}, sess.ID, repos.ChatStreamEnd{
		Status:  domainchat.SessionFailed,
		Error:   domainchat.AbandonedStreamError,
		EndedAt: now,
	})
	if err != nil {
		s.log.Error("Persist abandoned chat stream failed", "session_id", id, "error", err)
	}
	sess.Status = domainchat.SessionFailed
	sess.LastError = domainchat.AbandonedStreamError
	sess.ToolResults = nil
	sess.StreamEndedAt = &now
	if s.relay != nil {
		s.relay.Publish(id, realtime.Message{Type: realtime.MessageError, Error: domainchat.AbandonedStreamError})
	}
}

func (s *chatService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// produce runs one agent stream to a terminal state. The durable record is
// written before the terminal message is published so a client that polls
// after seeing done reads the final state.
func (s *chatService) produce(ctx context.Context, sess *types.ChatSession) {
	ctx, cancel := context.WithTimeout(ctx, s.streamTimeout)
	defer cancel()

	id := sess.ID.String()
	log := s.log.With("session_id", id)
	started := s.now()
	rec := &streamRecorder{pub: s.relay}
	rec.onTerminal = func(msg realtime.Message, chunks []string) {
		s.finish(log, sess, msg, chunks, started)
	}

	body, err := s.agent.Stream(ctx, agent.StreamRequest{
		SessionID: id,
		Messages:  toAgentMessages(sess.Turns),
	})
	if err != nil {
		log.Warn("Agent stream failed to open", "error", err)
		rec.Publish(id, realtime.Message{Type: realtime.MessageError, Error: err.Error()})
		return
	}
	defer body.Close()

	res := realtime.Pump(ctx, id, body, rec)
	log.Debug("Agent stream ended", "chunks", len(res.Chunks), "done", res.Done, "error", res.Err)
}

func (s *chatService) finish(log *logger.Logger, sess *types.ChatSession, msg realtime.Message, chunks []string, started time.Time) {
	text, tools := foldChunks(chunks)
	ended := s.now().UTC()
	end := repos.ChatStreamEnd{ToolResults: tools, EndedAt: ended, Status: domainchat.SessionComplete}
	if text != "" {
		end.Assistant = &domainchat.Turn{Role: domainchat.RoleAssistant, Content: text, CreatedAt: ended}
	}
	if msg.Type == realtime.MessageError {
		end.Status = domainchat.SessionFailed
		end.Error = msg.Error
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.sessions.EndStream(dbctx.Context{Ctx: ctx}, sess.ID, end); err != nil {
		log.Error("Persist chat stream result failed", "error", err)
	}

	if s.sink == nil {
		return
	}
	sid := sess.ID.String()
	eventName := eventChatStreamCompleted
	if end.Status == domainchat.SessionFailed {
		eventName = eventChatStreamFailed
	}
	if err := s.sink.Track(ctx, TrackEvent{
		OrganizationID: sess.OrganizationID,
		UserID:         sess.UserID,
		EventType:      domainanalytics.EventTypeChat,
		EventName:      eventName,
		Properties: map[string]any{
			"chunks":      len(chunks),
			"toolResults": len(tools),
			"durationMs":  ended.Sub(started).Milliseconds(),
		},
		SessionID: &sid,
		Timestamp: ended,
	}); err != nil {
		log.Warn("Track chat stream event failed", "error", err)
	}
}

// streamRecorder forwards relay messages and hands the collected chunks to
// onTerminal before the terminal message is forwarded.
type streamRecorder struct {
	pub        realtime.Publisher
	chunks     []string
	onTerminal func(msg realtime.Message, chunks []string)
	finished   bool
}

func (r *streamRecorder) Publish(sessionID string, msg realtime.Message) {
	if r.finished {
		return
	}
	switch {
	case msg.Type == realtime.MessageChunk:
		r.chunks = append(r.chunks, msg.Data)
	case msg.Terminal():
		r.finished = true
		if r.onTerminal != nil {
			r.onTerminal(msg, r.chunks)
		}
	}
	if r.pub != nil {
		r.pub.Publish(sessionID, msg)
	}
}

type agentChunk struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Tool    string          `json:"tool"`
	Result  json.RawMessage `json:"result"`
}

// foldChunks concatenates text chunks into the assistant reply and collects
// tool results. Chunks that are not JSON objects are taken as raw text.
func foldChunks(chunks []string) (string, []domainchat.ToolResult) {
	var b strings.Builder
	var tools []domainchat.ToolResult
	for _, raw := range chunks {
		var c agentChunk
		if err := json.Unmarshal([]byte(raw), &c); err != nil || c.Type == "" {
			b.WriteString(raw)
			continue
		}
		switch c.Type {
		case "text":
			b.WriteString(c.Content)
		case "tool_result":
			tools = append(tools, domainchat.ToolResult{Tool: c.Tool, Result: c.Result})
		}
	}
	return b.String(), tools
}

func toAgentMessages(turns []domainchat.Turn) []agent.ChatMessage {
	out := make([]agent.ChatMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, agent.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return out
}
