// Package unlock tracks which case studies a browsing session has unlocked
// and checks submitted passwords.
package unlock

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/Zachkp/portfolio/internal/logger"
)

// PersistKey is the session storage key holding the JSON array of unlocked project ids.
const PersistKey = "portfolio:unlocked-projects"

// Store is the unlock state of one browsing session. Projects start locked;
// once unlocked they stay unlocked for the life of the session.
type Store struct {
	storage   Storage
	sessionID string
	log       *logger.Logger

	mu       sync.RWMutex
	unlocked map[string]struct{}
}

// Open reads the persisted set for sessionID once and marks the session as
// active. Missing or corrupt data yields a store with nothing unlocked.
func Open(ctx context.Context, storage Storage, sessionID string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{
		storage:   storage,
		sessionID: sessionID,
		log:       log.With("session", sessionID),
		unlocked:  map[string]struct{}{},
	}

	raw, err := storage.Get(ctx, sessionID, PersistKey)
	switch {
	case errors.Is(err, ErrNoValue):
	case err != nil:
		s.log.Warn("unlock state unavailable", "error", err)
	default:
		for _, id := range parseSet(raw) {
			s.unlocked[id] = struct{}{}
		}
		if err := storage.Touch(ctx, sessionID); err != nil {
			s.log.Warn("touch session failed", "error", err)
		}
	}
	return s
}

// IsUnlocked reports whether projectID was unlocked in this session.
func (s *Store) IsUnlocked(projectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.unlocked[projectID]
	return ok
}

// MarkUnlocked unlocks projectID and persists it. Calling it again has no
// further effect. Persistence failures are logged and otherwise ignored: the
// unlock holds for this Store but may not survive a reload.
func (s *Store) MarkUnlocked(ctx context.Context, projectID string) {
	s.mu.Lock()
	s.unlocked[projectID] = struct{}{}
	s.mu.Unlock()

	err := s.storage.Update(ctx, s.sessionID, PersistKey, func(current string, found bool) string {
		var ids []string
		if found {
			ids = parseSet(current)
		}
		return encodeSet(append(ids, projectID))
	})
	if err != nil {
		s.log.Warn("persist unlock failed", "project", projectID, "error", err)
	}
}

// Unlocked returns the unlocked project ids, sorted.
func (s *Store) Unlocked() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.unlocked))
	for id := range s.unlocked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func parseSet(raw string) []string {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func encodeSet(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	b, _ := json.Marshal(out)
	return string(b)
}
