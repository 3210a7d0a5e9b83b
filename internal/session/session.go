// Package session stores the user projection of each signed-in session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xcyber/portal/internal/models"
)

// KeyPrefix namespaces session keys in shared stores.
const KeyPrefix = "xcyber_user:"

func key(sid string) string { return KeyPrefix + sid }

type entry struct {
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// MemoryStore keeps sessions in process. When path is set, every change is
// mirrored to a JSON file so sessions survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	path    string
	now     func() time.Time
}

func NewMemoryStore(path string) *MemoryStore {
	s := &MemoryStore{entries: map[string]entry{}, path: path, now: time.Now}
	if path == "" {
		return s
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		log.Printf("session: read %s: %v", path, err)
	default:
		if err := json.Unmarshal(b, &s.entries); err != nil {
			log.Printf("session: parse %s: %v", path, err)
			s.entries = map[string]entry{}
		}
	}
	return s
}

func (s *MemoryStore) Save(_ context.Context, sid string, u *models.User, ttl time.Duration) error {
	if u == nil {
		return errors.New("session: nil user")
	}
	cp := u.Public()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(sid)] = entry{User: cp, ExpiresAt: s.now().Add(ttl)}
	return s.persistLocked()
}

// Load returns (nil, nil) for unknown or expired sessions.
func (s *MemoryStore) Load(_ context.Context, sid string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(sid)]
	if !ok {
		return nil, nil
	}
	if !e.ExpiresAt.IsZero() && !s.now().Before(e.ExpiresAt) {
		delete(s.entries, key(sid))
		return nil, s.persistLocked()
	}
	cp := *e.User
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key(sid)]; !ok {
		return nil
	}
	delete(s.entries, key(sid))
	return s.persistLocked()
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	b, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sessions-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
