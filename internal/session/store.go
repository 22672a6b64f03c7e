package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"SQLChat/internal/storage"
)

// Store owns the sessions collection and the active-session pointer.
// Invariants it maintains across every operation:
//   - the collection is never empty
//   - sessions are ordered most-recent-first
//   - the active ID always references an existing session
//
// Every mutation persists the whole collection before returning.
type Store struct {
	kv     *storage.Store
	logger *slog.Logger

	mu       sync.Mutex
	sessions []Session
	activeID int64
}

// NewStore creates a session store from the persisted blob, falling back to
// a single fresh session when the blob is missing or corrupt.
func NewStore(kv *storage.Store, logger *slog.Logger) *Store {
	s := &Store{kv: kv, logger: logger}

	blob, ok, err := kv.Get(storage.KeySessions)
	if err != nil {
		logger.Warn("failed to load sessions, starting fresh", "error", err)
	}
	if ok && err == nil {
		var sessions []Session
		if err := json.Unmarshal(blob, &sessions); err != nil {
			logger.Warn("corrupt sessions blob, starting fresh", "error", err)
		} else if len(sessions) > 0 {
			s.sessions = sessions
			s.activeID = sessions[0].ID
			logger.Info("loaded sessions", "count", len(sessions), "active_id", s.activeID)
			return s
		}
	}

	fresh := s.freshSession()
	s.sessions = []Session{fresh}
	s.activeID = fresh.ID
	s.persist()
	return s
}

// freshSession builds an empty session with an ID strictly greater than any
// existing one, so recency ordering survives same-millisecond creates.
// Caller must hold mu (or be the only reference).
func (s *Store) freshSession() Session {
	id := time.Now().UnixMilli()
	for _, sess := range s.sessions {
		if id <= sess.ID {
			id = sess.ID + 1
		}
	}
	return Session{ID: id, Title: DefaultTitle, Messages: []Message{}}
}

// persist writes the full sessions collection. Caller must hold mu.
func (s *Store) persist() {
	blob, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.Error("failed to marshal sessions", "error", err)
		return
	}
	if err := s.kv.Put(storage.KeySessions, blob); err != nil {
		s.logger.Error("failed to persist sessions", "error", err)
	}
}

// Sessions returns a snapshot of the collection, most recent first.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// ActiveID returns the ID of the active session.
func (s *Store) ActiveID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a copy of the active session.
func (s *Store) Active() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == s.activeID {
			return copySession(sess)
		}
	}
	// Unreachable while the invariants hold; fall back to the most recent.
	return copySession(s.sessions[0])
}

// Create constructs a fresh session, prepends it and makes it active.
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := s.freshSession()
	s.sessions = append([]Session{fresh}, s.sessions...)
	s.activeID = fresh.ID
	s.persist()
	s.logger.Info("created session", "session_id", fresh.ID)
	return fresh
}

// Delete removes the session with the given ID. Deleting the last session
// replaces it with a fresh one; deleting the active session promotes the
// most recent remaining one.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.sessions[:0:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			remaining = append(remaining, sess)
		}
	}

	if len(remaining) == 0 {
		s.sessions = nil
		fresh := s.freshSession()
		s.sessions = []Session{fresh}
		s.activeID = fresh.ID
	} else {
		s.sessions = remaining
		if s.activeID == id {
			s.activeID = remaining[0].ID
		}
	}
	s.persist()
	s.logger.Info("deleted session", "session_id", id, "active_id", s.activeID)
}

// Select makes the session with the given ID active. Unknown IDs are a
// silent no-op.
func (s *Store) Select(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			s.activeID = id
			s.persist()
			return
		}
	}
}

// ReplaceMessages atomically replaces one session's message log, leaving
// every other session untouched. If the session had no messages yet, its
// title is derived from titleIfFirst. Unknown IDs are a no-op.
func (s *Store) ReplaceMessages(id int64, messages []Message, titleIfFirst string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID != id {
			continue
		}
		if len(s.sessions[i].Messages) == 0 && titleIfFirst != "" {
			s.sessions[i].Title = DeriveTitle(titleIfFirst)
		}
		s.sessions[i].Messages = messages
		s.persist()
		return
	}
	s.logger.Warn("replace on unknown session", "session_id", id)
}

func copySession(sess Session) Session {
	out := sess
	out.Messages = make([]Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return out
}
