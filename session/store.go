// Package session keeps the per-user conversation step and payload, backed by
// a persistent repository and fronted by an in-memory cache.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rental-scout/models"
	"rental-scout/storage"
	"rental-scout/utils"
)

// ErrorKind classifies a SessionError.
type ErrorKind int

const (
	PersistenceUnavailable ErrorKind = iota + 1
)

// ErrPersistenceUnavailable matches any SessionError of kind
// PersistenceUnavailable through errors.Is.
var ErrPersistenceUnavailable = errors.New("session: persistence unavailable")

// SessionError reports a failed write to the session repository. The cache is
// left untouched when one is returned.
type SessionError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func (e *SessionError) Is(target error) bool {
	return target == ErrPersistenceUnavailable && e.Kind == PersistenceUnavailable
}

// Store reads and writes conversation sessions. Reads fail open: any
// persistence problem yields "no session" rather than an error.
type Store struct {
	repo   storage.SessionRepository
	ttl    time.Duration
	now    func() time.Time
	logger *utils.Logger

	mu    sync.RWMutex
	cache map[int64]models.ConversationSession
	// gen counts writes per chat. A repository load only fills the cache if
	// the count is unchanged since the load started.
	gen map[int64]uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the process clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store whose sessions live for ttl after each write.
func NewStore(repo storage.SessionRepository, ttl time.Duration, logger *utils.Logger, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("component", "session"),
		cache:  make(map[int64]models.ConversationSession),
		gen:    make(map[int64]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// CreateOrReplace stores step and payload for chatID, expiring ttl from now.
// StepNone clears the session instead.
func (s *Store) CreateOrReplace(ctx context.Context, chatID int64, step models.Step, payload map[string]any) error {
	if step == models.StepNone {
		return s.Clear(ctx, chatID)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("session: encode payload: %w", err)
	}

	sess := models.ConversationSession{
		ChatID:    chatID,
		Step:      step,
		Payload:   payload,
		ExpiresAt: s.now().Add(s.ttl),
	}
	row := storage.SessionRow{ChatID: chatID, Step: string(step), Payload: raw, ExpiresAt: sess.ExpiresAt}
	if err := s.repo.UpsertSession(ctx, row); err != nil {
		s.logger.Error("session write failed", err, "chat_id", chatID, "step", step)
		return &SessionError{Kind: PersistenceUnavailable, Op: "upsert", Err: err}
	}

	s.mu.Lock()
	s.cache[chatID] = sess
	s.gen[chatID]++
	s.mu.Unlock()
	return nil
}

// Get returns the live session for chatID. A session at or past its expiry
// is cleared and reported absent.
func (s *Store) Get(ctx context.Context, chatID int64) (models.ConversationSession, bool) {
	s.mu.RLock()
	sess, cached := s.cache[chatID]
	gen := s.gen[chatID]
	s.mu.RUnlock()

	if !cached {
		row, ok, err := s.repo.LoadSession(ctx, chatID)
		if err != nil {
			s.logger.Error("session read failed", err, "chat_id", chatID)
			return models.ConversationSession{}, false
		}
		if !ok {
			return models.ConversationSession{}, false
		}
		sess, err = decodeRow(row)
		if err != nil {
			s.logger.Warn("dropping unreadable session", "chat_id", chatID, "err", err)
			_ = s.Clear(ctx, chatID)
			return models.ConversationSession{}, false
		}
	}

	if sess.Expired(s.now()) {
		if err := s.Clear(ctx, chatID); err != nil {
			s.logger.Warn("expired session not removed", "chat_id", chatID, "err", err)
		}
		return models.ConversationSession{}, false
	}

	if !cached {
		return s.fill(chatID, sess, gen)
	}
	return sess, true
}

// fill caches a session loaded from the repository. If a write for the same
// chat happened after gen was read, the loaded row may be stale and the
// cache, which that write updated, is authoritative instead.
func (s *Store) fill(chatID int64, loaded models.ConversationSession, gen uint64) (models.ConversationSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[chatID] != gen {
		sess, ok := s.cache[chatID]
		return sess, ok
	}
	s.cache[chatID] = loaded
	return loaded, true
}

// Clear removes the session for chatID. Clearing an absent session is a no-op.
func (s *Store) Clear(ctx context.Context, chatID int64) error {
	s.invalidate(chatID)
	err := s.repo.DeleteSession(ctx, chatID)
	// Loads that started before the delete committed must not fill the cache.
	s.invalidate(chatID)
	if err != nil {
		return &SessionError{Kind: PersistenceUnavailable, Op: "delete", Err: err}
	}
	return nil
}

func (s *Store) invalidate(chatID int64) {
	s.mu.Lock()
	delete(s.cache, chatID)
	s.gen[chatID]++
	s.mu.Unlock()
}

// PurgeExpired deletes expired rows from the repository and evicts expired
// cache entries. It returns the number of rows removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	for id, sess := range s.cache {
		if sess.Expired(now) {
			delete(s.cache, id)
		}
	}
	s.mu.Unlock()

	n, err := s.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, &SessionError{Kind: PersistenceUnavailable, Op: "purge", Err: err}
	}
	s.logger.Info("expired sessions purged", "rows", n)
	return n, nil
}

func decodeRow(row storage.SessionRow) (models.ConversationSession, error) {
	payload := map[string]any{}
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return models.ConversationSession{}, fmt.Errorf("decode payload: %w", err)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}
	return models.ConversationSession{
		ChatID:    row.ChatID,
		Step:      models.Step(row.Step),
		Payload:   payload,
		ExpiresAt: row.ExpiresAt,
	}, nil
}
