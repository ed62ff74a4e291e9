package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillforge-backend/internal/clients/agent"
	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	"github.com/yungbote/skillforge-backend/internal/data/repos"
	types "github.com/yungbote/skillforge-backend/internal/domain"
	domainchat "github.com/yungbote/skillforge-backend/internal/domain/chat"
	"github.com/yungbote/skillforge-backend/internal/domain/learning"
	"github.com/yungbote/skillforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func authedCtx(orgID, userID uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{OrganizationID: orgID, UserID: userID})
}

// testCourse builds an in-memory course with n lessons per module.
func testCourse(orgID uuid.UUID, lessonsPerModule ...int) (*types.Course, []uuid.UUID) {
	c := &types.Course{ID: uuid.New(), OrganizationID: orgID, Title: "Course", Status: learning.CourseStatusPublished}
	var ids []uuid.UUID
	for mi, n := range lessonsPerModule {
		m := types.CourseModule{ID: uuid.New(), CourseID: c.ID, Order: mi + 1}
		for li := 0; li < n; li++ {
			l := types.Lesson{ID: uuid.New(), ModuleID: m.ID, CourseID: c.ID, Order: li + 1, Kind: learning.LessonKindContent}
			m.Lessons = append(m.Lessons, l)
			ids = append(ids, l.ID)
		}
		c.Modules = append(c.Modules, m)
	}
	return c, ids
}

type fakeCourseRepo struct {
	courses map[uuid.UUID]*types.Course
	err     error
}

func newFakeCourseRepo(courses ...*types.Course) *fakeCourseRepo {
	r := &fakeCourseRepo{courses: map[uuid.UUID]*types.Course{}}
	for _, c := range courses {
		r.courses[c.ID] = c
	}
	return r
}

func (r *fakeCourseRepo) Create(_ dbctx.Context, c *types.Course) error {
	r.courses[c.ID] = c
	return nil
}

func (r *fakeCourseRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Course, error) {
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.courses[id]
	if !ok {
		return nil, nil
	}
	shallow := *c
	shallow.Modules = nil
	return &shallow, nil
}

func (r *fakeCourseRepo) GetWithLessons(_ dbctx.Context, id uuid.UUID) (*types.Course, error) {
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.courses[id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (r *fakeCourseRepo) GetLessonByID(_ dbctx.Context, lessonID uuid.UUID) (*types.Lesson, error) {
	for _, c := range r.courses {
		for _, m := range c.Modules {
			for i := range m.Lessons {
				if m.Lessons[i].ID == lessonID {
					l := m.Lessons[i]
					return &l, nil
				}
			}
		}
	}
	return nil, nil
}

// fakeEnrollmentRepo enforces the same compare-and-set contract as the gorm
// repo. onGet runs after every read and may block to force interleavings.
type fakeEnrollmentRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*types.Enrollment
	gets     int
	onGet    func(call int)
	saveFail bool
	saveErr  error
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{rows: map[uuid.UUID]*types.Enrollment{}}
}

func (r *fakeEnrollmentRepo) Create(_ dbctx.Context, e *types.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == e.UserID && row.CourseID == e.CourseID {
			return aggregates.ConflictError("duplicate enrollment")
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = learning.EnrollmentNotStarted
	}
	r.rows[e.ID] = e.Clone()
	return nil
}

func (r *fakeEnrollmentRepo) GetByUserAndCourse(_ dbctx.Context, userID, courseID uuid.UUID) (*types.Enrollment, error) {
	r.mu.Lock()
	r.gets++
	call := r.gets
	hook := r.onGet
	var found *types.Enrollment
	for _, row := range r.rows {
		if row.UserID == userID && row.CourseID == courseID {
			found = row.Clone()
			break
		}
	}
	r.mu.Unlock()
	// the hook sees the read already taken, so callers can line up on one version
	if hook != nil {
		hook(call)
	}
	return found, nil
}

func (r *fakeEnrollmentRepo) ListByUser(_ dbctx.Context, orgID, userID uuid.UUID) ([]*types.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Enrollment
	for _, row := range r.rows {
		if row.UserID == userID && row.OrganizationID == orgID {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) SaveProgress(_ dbctx.Context, e *types.Enrollment, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return false, r.saveErr
	}
	if r.saveFail {
		return false, nil
	}
	row, ok := r.rows[e.ID]
	if !ok || row.Version != expectedVersion {
		return false, nil
	}
	e.Version = expectedVersion + 1
	r.rows[e.ID] = e.Clone()
	return true, nil
}

func (r *fakeEnrollmentRepo) only(t *testing.T) *types.Enrollment {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) != 1 {
		t.Fatalf("expected one enrollment, have %d", len(r.rows))
	}
	for _, row := range r.rows {
		return row.Clone()
	}
	return nil
}

type fakeLessonProgressRepo struct {
	mu   sync.Mutex
	rows map[[2]uuid.UUID]*types.LessonProgress
	err  error
}

func newFakeLessonProgressRepo() *fakeLessonProgressRepo {
	return &fakeLessonProgressRepo{rows: map[[2]uuid.UUID]*types.LessonProgress{}}
}

func (r *fakeLessonProgressRepo) Upsert(_ dbctx.Context, p *types.LessonProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	key := [2]uuid.UUID{p.UserID, p.LessonID}
	if row, ok := r.rows[key]; ok {
		row.TimeSpentSeconds += p.TimeSpentSeconds
		return nil
	}
	cp := *p
	r.rows[key] = &cp
	return nil
}

func (r *fakeLessonProgressRepo) GetByUserAndLesson(_ dbctx.Context, userID, lessonID uuid.UUID) (*types.LessonProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[[2]uuid.UUID{userID, lessonID}]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

type fakeQuizAttemptRepo struct {
	attempts []*types.QuizAttempt
}

func (r *fakeQuizAttemptRepo) Create(_ dbctx.Context, a *types.QuizAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *fakeQuizAttemptRepo) ListByUserAndLesson(_ dbctx.Context, userID, lessonID uuid.UUID) ([]*types.QuizAttempt, error) {
	var out []*types.QuizAttempt
	for _, a := range r.attempts {
		if a.UserID == userID && a.LessonID == lessonID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	mu   sync.Mutex
	rows []*types.AnalyticsEvent
	err  error
}

func (r *fakeEventRepo) Insert(_ dbctx.Context, events ...*types.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, events...)
	return nil
}

func (r *fakeEventRepo) ListByUser(_ dbctx.Context, orgID, userID uuid.UUID, eventName string, limit int) ([]*types.AnalyticsEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.AnalyticsEvent
	for _, e := range r.rows {
		if e.OrganizationID == orgID && e.UserID == userID && (eventName == "" || e.EventName == eventName) {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []TrackEvent
	err    error
}

func (s *recordingSink) Track(_ context.Context, ev TrackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) named(name string) []TrackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TrackEvent
	for _, ev := range s.events {
		if ev.EventName == name {
			out = append(out, ev)
		}
	}
	return out
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*types.ChatSession
	ended    chan repos.ChatStreamEnd
	// endErr makes EndStream fail without writing; the end is still reported on ended
	endErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: map[uuid.UUID]*types.ChatSession{},
		ended:    make(chan repos.ChatStreamEnd, 4),
	}
}

func (r *fakeSessionRepo) Create(_ dbctx.Context, s *types.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Turns = append([]domainchat.Turn(nil), s.Turns...)
	cp.ToolResults = append([]domainchat.ToolResult(nil), s.ToolResults...)
	return &cp, nil
}

func (r *fakeSessionRepo) BeginStream(_ dbctx.Context, id uuid.UUID, turn domainchat.Turn, staleAfter time.Duration) (*types.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, aggregates.ErrNotFound
	}
	now := time.Now().UTC()
	if s.Status == domainchat.SessionStreaming && !s.StreamStale(now, staleAfter) {
		return nil, aggregates.ConflictError("already streaming")
	}
	s.Turns = append(s.Turns, turn)
	s.ToolResults = nil
	s.LastError = ""
	s.Status = domainchat.SessionStreaming
	s.StreamStartedAt = &now
	cp := *s
	cp.Turns = append([]domainchat.Turn(nil), s.Turns...)
	return &cp, nil
}

func (r *fakeSessionRepo) EndStream(_ dbctx.Context, id uuid.UUID, end repos.ChatStreamEnd) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	failWith := r.endErr
	if ok && failWith == nil {
		if end.Assistant != nil {
			s.Turns = append(s.Turns, *end.Assistant)
		}
		s.ToolResults = end.ToolResults
		s.Status = end.Status
		s.LastError = end.Error
	}
	r.mu.Unlock()
	if !ok {
		return aggregates.ErrNotFound
	}
	r.ended <- end
	return failWith
}

// fakeAgent replays a canned `data:` stream.
type fakeAgent struct {
	mu       sync.Mutex
	body     string
	err      error
	requests []agent.StreamRequest
}

func (a *fakeAgent) Stream(_ context.Context, req agent.StreamRequest) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return nil, a.err
	}
	return io.NopCloser(strings.NewReader(a.body)), nil
}

var errBoom = errors.New("boom")

func dbcBackground() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }
