package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/skillforge-backend/internal/data/aggregates"
	domainchat "github.com/yungbote/skillforge-backend/internal/domain/chat"
	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

type StreamEnd struct {
	Assistant   *domainchat.Turn
	ToolResults []domainchat.ToolResult
	Status      domainchat.SessionStatus
	Error       string
	EndedAt     time.Time
}

type SessionRepo interface {
	Create(dbc dbctx.Context, s *domainchat.Session) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domainchat.Session, error)
	// BeginStream appends the user turn, resets tool results and marks the
	// session streaming. A session that is already streaming is a conflict
	// unless its stream started more than staleAfter ago, in which case it is
	// taken over.
	BeginStream(dbc dbctx.Context, id uuid.UUID, turn domainchat.Turn, staleAfter time.Duration) (*domainchat.Session, error)
	// EndStream records the outcome of a stream on the durable record.
	EndStream(dbc dbctx.Context, id uuid.UUID, end StreamEnd) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "ChatSessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, s *domainchat.Session) error {
	if s == nil || s.UserID == uuid.Nil {
		return aggregates.ValidationError("session requires a user")
	}
	if err := dbc.DB(r.db).Create(s).Error; err != nil {
		return aggregates.Classify("create chat session", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domainchat.Session, error) {
	var s domainchat.Session
	err := dbc.DB(r.db).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, aggregates.Classify("get chat session", err)
	}
	return &s, nil
}

func (r *sessionRepo) BeginStream(dbc dbctx.Context, id uuid.UUID, turn domainchat.Turn, staleAfter time.Duration) (*domainchat.Session, error) {
	var out *domainchat.Session
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		s, err := lockSession(tx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if s.Status == domainchat.SessionStreaming {
			if !s.StreamStale(now, staleAfter) {
				return aggregates.ConflictError("chat session is already streaming")
			}
			r.log.Warn("Taking over abandoned chat stream", "session_id", id.String(), "stream_started_at", s.StreamStartedAt)
		}
		s.Turns = append(s.Turns, turn)
		s.ToolResults = nil
		s.Status = domainchat.SessionStreaming
		s.LastError = ""
		s.StreamStartedAt = &now
		s.StreamEndedAt = nil
		if err := tx.Model(s).Select("turns", "tool_results", "status", "last_error", "stream_started_at", "stream_ended_at", "updated_at").Updates(s).Error; err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, aggregates.Classify("begin chat stream", err)
	}
	return out, nil
}

func (r *sessionRepo) EndStream(dbc dbctx.Context, id uuid.UUID, end StreamEnd) error {
	err := r.inTx(dbc, func(tx *gorm.DB) error {
		s, err := lockSession(tx, id)
		if err != nil {
			return err
		}
		if end.Assistant != nil {
			s.Turns = append(s.Turns, *end.Assistant)
		}
		s.ToolResults = end.ToolResults
		s.Status = end.Status
		s.LastError = end.Error
		ended := end.EndedAt
		if ended.IsZero() {
			ended = time.Now().UTC()
		}
		s.StreamEndedAt = &ended
		return tx.Model(s).Select("turns", "tool_results", "status", "last_error", "stream_ended_at", "updated_at").Updates(s).Error
	})
	if err != nil {
		return aggregates.Classify("end chat stream", err)
	}
	return nil
}

func (r *sessionRepo) inTx(dbc dbctx.Context, fn func(tx *gorm.DB) error) error {
	if dbc.Tx != nil {
		return fn(dbc.DB(r.db))
	}
	return dbc.DB(r.db).Transaction(fn)
}

func lockSession(tx *gorm.DB, id uuid.UUID) (*domainchat.Session, error) {
	var s domainchat.Session
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
