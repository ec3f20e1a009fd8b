package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("not authorized to access this session")
)

// Options tunes lookup strictness and idle eviction.
type Options struct {
	// Strict makes AppendMessage fail on unknown sessions instead of ignoring them.
	Strict bool
	// IdleTTL evicts sessions untouched for longer than this. Zero keeps them forever.
	IdleTTL time.Duration
	// SweepInterval controls how often the eviction loop runs.
	SweepInterval time.Duration
}

// Service is the in-memory session store. All access goes through mu.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	byUser   map[string][]string
	strict   bool

	evictIdle     time.Duration
	evictInterval time.Duration
	evictRunning  bool

	now func() time.Time
}

// NewService bootstraps an empty store.
func NewService(opts Options) *Service {
	return &Service{
		sessions:      make(map[string]*chat.Session),
		byUser:        make(map[string][]string),
		strict:        opts.Strict,
		evictIdle:     opts.IdleTTL,
		evictInterval: opts.SweepInterval,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions a session, indexing it under userID when one is given.
func (s *Service) CreateSession(_ context.Context, userID, title string) (chat.Session, error) {
	now := s.now()
	session := &chat.Session{
		ID:        uuid.NewString(),
		Messages:  make([]chat.Message, 0, 16),
		CreatedAt: now,
		UpdatedAt: now,
		Title:     title,
	}
	if session.Title == "" {
		session.Title = chat.DefaultTitle
	}
	if userID != "" {
		owner := userID
		session.UserID = &owner
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	if userID != "" {
		s.byUser[userID] = append(s.byUser[userID], session.ID)
	}
	s.mu.Unlock()

	log.Debug().Str("component", "chat").Str("session_id", session.ID).Str("user_id", userID).Msg("session created")
	return session.Clone(), nil
}

// GetSession retrieves a snapshot of a session.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// GetSessionFor is GetSession plus the ownership check used by the HTTP layer.
func (s *Service) GetSessionFor(ctx context.Context, sessionID, userID string) (chat.Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	if session.OwnedByOther(userID) {
		return chat.Session{}, ErrForbidden
	}
	return session, nil
}

// AppendMessage adds a message to the transcript. The first user message names the session.
func (s *Service) AppendMessage(_ context.Context, sessionID string, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		if s.strict {
			return errors.Wrapf(ErrSessionNotFound, "append to %s", sessionID)
		}
		log.Debug().Str("component", "chat").Str("session_id", sessionID).Msg("append to unknown session ignored")
		return nil
	}

	if message.Timestamp.IsZero() {
		message.Timestamp = s.now()
	}

	session.Messages = append(session.Messages, message)
	session.UpdatedAt = s.now()

	if len(session.Messages) == 1 && message.Role == chat.RoleUser {
		session.Title = chat.DeriveTitle(message.Content)
	}
	return nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(session.Messages))
	copy(copied, session.Messages)
	return copied, nil
}

// SessionsForUser lists the sessions a user created, oldest first.
func (s *Service) SessionsForUser(_ context.Context, userID string) ([]chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	out := make([]chat.Session, 0, len(ids))
	for _, id := range ids {
		if session, ok := s.sessions[id]; ok {
			out = append(out, session.Clone())
		}
	}
	return out, nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
