package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrInvalidID = errors.New("invalid session ID")
	ErrConflict  = errors.New("session kept changing, update abandoned")
)

// UpdateFunc mutates a session in place. Returning an error aborts the write.
// It may run more than once, against a fresh copy each time.
type UpdateFunc func(*models.Session) error

// Store keeps review sessions. Implementations hand out copies, so a caller
// must Set a session again after changing it.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Set(ctx context.Context, session *models.Session) error
	// Update is an atomic read-modify-write of one session. When fn fails,
	// the session as fn left it is returned along with fn's error and
	// nothing is written.
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	// List returns every session, oldest first
	List(ctx context.Context) ([]*models.Session, error)
}

type SessionStore struct {
	sessions map[string]*models.Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
	}
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) Set(_ context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) Update(_ context.Context, sessionID string, fn UpdateFunc) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	session := current.Clone()
	if err := fn(session); err != nil {
		return session, err
	}
	s.sessions[sessionID] = session.Clone()
	return session, nil
}

func (s *SessionStore) List(_ context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v.Clone())
	}
	sortSessions(result)
	return result, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func sortSessions(list []*models.Session) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
