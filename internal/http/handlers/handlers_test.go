package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/skillforge-backend/internal/domain"
	domainchat "github.com/yungbote/skillforge-backend/internal/domain/chat"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
	"github.com/yungbote/skillforge-backend/internal/platform/apierr"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
	"github.com/yungbote/skillforge-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeEnrollments struct {
	created bool
	err     error
}

func (f fakeEnrollments) Enroll(_ context.Context, courseID uuid.UUID) (*types.Enrollment, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return &types.Enrollment{ID: uuid.New(), CourseID: courseID, Status: learning.EnrollmentNotStarted}, f.created, nil
}

func (f fakeEnrollments) GetForCourse(context.Context, uuid.UUID) (*types.Enrollment, error) {
	return nil, apierr.NotFound("enrollment_not_found", errors.New("not enrolled in course"))
}

func (f fakeEnrollments) List(context.Context) ([]*types.Enrollment, error) {
	return []*types.Enrollment{}, nil
}

type fakeLessons struct{ out services.ProgressOutcome }

func (f fakeLessons) CompleteLesson(_ context.Context, lessonID uuid.UUID, secs int64) (*services.LessonCompletion, error) {
	return &services.LessonCompletion{
		Progress: &types.LessonProgress{LessonID: lessonID, TimeSpentSeconds: secs},
		Outcome:  f.out,
	}, nil
}

type fakeQuizzes struct{}

func (fakeQuizzes) SubmitQuiz(_ context.Context, lessonID uuid.UUID, answers []string, _ int64) (*services.QuizSubmission, error) {
	return &services.QuizSubmission{
		Attempt: &types.QuizAttempt{LessonID: lessonID, Answers: answers, Score: 40},
		Passed:  false,
	}, nil
}

type fakeAnalytics struct {
	mu     sync.Mutex
	inputs []services.ClientEventInput
}

func (f *fakeAnalytics) Track(context.Context, services.TrackEvent) error { return nil }

func (f *fakeAnalytics) Ingest(_ context.Context, in []services.ClientEventInput) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in...)
	return len(in), nil
}

type fakeChat struct {
	session  *domainchat.Session
	startErr error
	started  services.StartChatInput
}

func (f *fakeChat) Start(_ context.Context, in services.StartChatInput) (*types.ChatSession, error) {
	f.started = in
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.session, nil
}

func (f *fakeChat) Get(_ context.Context, id uuid.UUID) (*types.ChatSession, error) {
	if f.session == nil || f.session.ID != id {
		return nil, apierr.NotFound("chat_session_not_found", errors.New("chat session not found"))
	}
	return f.session, nil
}

func (f *fakeChat) Wait(context.Context) error { return nil }

func serve(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	r := gin.New()
	h := NewHealthHandler(map[string]ReadinessCheck{
		"db": func(context.Context) error { return errors.New("down") },
	})
	r.GET("/healthcheck", h.HealthCheck)
	r.GET("/readyz", h.Ready)

	rec := serve(r, http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("healthcheck: %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(r, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: %d", rec.Code)
	}
}

func TestEnrollStatusCodes(t *testing.T) {
	for _, tc := range []struct {
		name    string
		created bool
		want    int
	}{
		{"new", true, http.StatusCreated},
		{"existing", false, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			h := NewEnrollmentHandler(logger.Nop(), fakeEnrollments{created: tc.created})
			r.POST("/api/courses/:id/enroll", h.Enroll)
			rec := serve(r, http.MethodPost, "/api/courses/"+uuid.NewString()+"/enroll", "")
			if rec.Code != tc.want {
				t.Fatalf("status: got=%d want=%d", rec.Code, tc.want)
			}
		})
	}
}

func TestEnrollmentErrors(t *testing.T) {
	r := gin.New()
	h := NewEnrollmentHandler(logger.Nop(), fakeEnrollments{})
	r.POST("/api/courses/:id/enroll", h.Enroll)
	r.GET("/api/courses/:id/enrollment", h.GetForCourse)

	if rec := serve(r, http.MethodPost, "/api/courses/not-a-uuid/enroll", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
	rec := serve(r, http.MethodGet, "/api/courses/"+uuid.NewString()+"/enrollment", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing enrollment: %d", rec.Code)
	}
	errBody := decode(t, rec)["error"].(map[string]any)
	if errBody["code"] != "enrollment_not_found" {
		t.Fatalf("code: %v", errBody)
	}
}

func TestCompleteLessonReturnsOutcome(t *testing.T) {
	r := gin.New()
	out := services.ProgressOutcome{
		Status:          services.OutcomeApplied,
		CourseCompleted: true,
		Enrollment:      &types.Enrollment{ProgressPercentage: 100, Status: learning.EnrollmentCompleted},
	}
	h := NewLessonHandler(logger.Nop(), fakeLessons{out: out}, fakeQuizzes{})
	r.POST("/api/lessons/:id/complete", h.CompleteLesson)

	rec := serve(r, http.MethodPost, "/api/lessons/"+uuid.NewString()+"/complete", `{"timeSpentSeconds":90}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	outcome := body["outcome"].(map[string]any)
	if outcome["status"] != "applied" || outcome["courseCompleted"] != true {
		t.Fatalf("outcome: %v", outcome)
	}
	enr := outcome["enrollment"].(map[string]any)
	if enr["progressPercentage"].(float64) != 100 {
		t.Fatalf("enrollment: %v", enr)
	}
	if lp := body["lessonProgress"].(map[string]any); lp["timeSpentSeconds"].(float64) != 90 {
		t.Fatalf("lessonProgress: %v", lp)
	}

	rec = serve(r, http.MethodPost, "/api/lessons/"+uuid.NewString()+"/complete", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body should be accepted: %d", rec.Code)
	}
	rec = serve(r, http.MethodPost, "/api/lessons/"+uuid.NewString()+"/complete", `{"timeSpentSeconds":-4}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative time: %d", rec.Code)
	}
}

func TestSubmitQuizFailedAttemptHasNoOutcome(t *testing.T) {
	r := gin.New()
	h := NewLessonHandler(logger.Nop(), fakeLessons{}, fakeQuizzes{})
	r.POST("/api/lessons/:id/quiz", h.SubmitQuiz)

	rec := serve(r, http.MethodPost, "/api/lessons/"+uuid.NewString()+"/quiz", `{"answers":["a","x"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["passed"] != false || body["outcome"] != nil {
		t.Fatalf("body: %v", body)
	}
	if rec := serve(r, http.MethodPost, "/api/lessons/"+uuid.NewString()+"/quiz", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing answers: %d", rec.Code)
	}
}

func TestIngestEventShapes(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want int
		n    int
	}{
		{"envelope", `{"events":[{"eventName":"video_played"},{"eventName":"video_paused"}]}`, http.StatusAccepted, 2},
		{"array", `[{"eventName":"video_played"}]`, http.StatusAccepted, 1},
		{"single", `{"eventName":"video_played","properties":{"pos":3}}`, http.StatusAccepted, 1},
		{"single without name", `{"properties":{}}`, http.StatusBadRequest, 0},
		{"scalar", `"hi"`, http.StatusBadRequest, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			fa := &fakeAnalytics{}
			h := NewEventHandler(logger.Nop(), fa)
			r.POST("/api/events", h.Ingest)
			rec := serve(r, http.MethodPost, "/api/events", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.want, rec.Body.String())
			}
			if len(fa.inputs) != tc.n {
				t.Fatalf("ingested: got=%d want=%d", len(fa.inputs), tc.n)
			}
		})
	}
}

func chatEngine(chat *fakeChat, relay *realtime.Relay) *gin.Engine {
	r := gin.New()
	h := NewChatHandler(logger.Nop(), chat, relay, nil, time.Minute)
	r.POST("/api/chat/sessions", h.StartSession)
	r.GET("/api/chat/sessions/:id", h.GetSession)
	r.GET("/api/chat/sessions/:id/stream", h.Stream)
	return r
}

func TestStartSessionReturnsAccepted(t *testing.T) {
	sess := &domainchat.Session{ID: uuid.New(), Status: domainchat.SessionStreaming}
	chat := &fakeChat{session: sess}
	r := chatEngine(chat, realtime.New(logger.Nop()))

	rec := serve(r, http.MethodPost, "/api/chat/sessions", `{"message":"explain closures"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	if decode(t, rec)["sessionId"] != sess.ID.String() {
		t.Fatalf("sessionId: %s", rec.Body.String())
	}
	if chat.started.Message != "explain closures" {
		t.Fatalf("input: %+v", chat.started)
	}

	if rec := serve(r, http.MethodPost, "/api/chat/sessions", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing message: %d", rec.Code)
	}
	chat.startErr = apierr.Conflict("stream_in_progress", errors.New("busy"))
	if rec := serve(r, http.MethodPost, "/api/chat/sessions", `{"message":"again"}`); rec.Code != http.StatusConflict {
		t.Fatalf("conflict: %d", rec.Code)
	}
}

func TestGetSessionPolling(t *testing.T) {
	sess := &domainchat.Session{
		ID:          uuid.New(),
		Status:      domainchat.SessionComplete,
		ToolResults: []domainchat.ToolResult{{Tool: "search", Result: json.RawMessage(`{"hits":2}`)}},
	}
	r := chatEngine(&fakeChat{session: sess}, realtime.New(logger.Nop()))

	rec := serve(r, http.MethodGet, "/api/chat/sessions/"+sess.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	got := decode(t, rec)["session"].(map[string]any)
	if got["status"] != "complete" || len(got["toolResults"].([]any)) != 1 {
		t.Fatalf("session: %v", got)
	}
	if rec := serve(r, http.MethodGet, "/api/chat/sessions/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", rec.Code)
	}
}

func TestStreamTerminalSessionWritesFrameImmediately(t *testing.T) {
	sess := &domainchat.Session{ID: uuid.New(), Status: domainchat.SessionFailed, LastError: "agent stream: status 502"}
	relay := realtime.New(logger.Nop())
	r := chatEngine(&fakeChat{session: sess}, relay)

	rec := serve(r, http.MethodGet, "/api/chat/sessions/"+sess.ID.String()+"/stream", "")
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}
	want := `data: {"type":"error","error":"agent stream: status 502"}` + "\n\n"
	if rec.Body.String() != want {
		t.Fatalf("body: %q", rec.Body.String())
	}
	if n := relay.Subscribers(sess.ID.String()); n != 0 {
		t.Fatalf("subscription leaked: %d", n)
	}
}

func TestStreamRelaysUntilDone(t *testing.T) {
	sess := &domainchat.Session{ID: uuid.New(), Status: domainchat.SessionStreaming}
	relay := realtime.New(logger.Nop())
	srv := httptest.NewServer(chatEngine(&fakeChat{session: sess}, relay))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/chat/sessions/" + sess.ID.String() + "/stream")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	sid := sess.ID.String()
	deadline := time.Now().Add(2 * time.Second)
	for relay.Subscribers(sid) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	relay.Publish(sid, realtime.Message{Type: realtime.MessageChunk, Data: "hel"})
	relay.Publish(sid, realtime.Message{Type: realtime.MessageChunk, Data: "lo"})
	relay.Publish(sid, realtime.Message{Type: realtime.MessageDone})

	var frames []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	want := []string{
		`{"type":"chunk","data":"hel"}`,
		`{"type":"chunk","data":"lo"}`,
		`{"type":"done"}`,
	}
	if strings.Join(frames, "|") != strings.Join(want, "|") {
		t.Fatalf("frames: %v", frames)
	}
}
