package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"advisory-cms/internal/model"
)

// MemoryAdminStore is an in-memory credential store used by tests and local
// tooling. It implements the same contract as AdminRepository.
type MemoryAdminStore struct {
	mu     sync.RWMutex
	byID   map[string]model.Admin
	emails map[string]string
}

func NewMemoryAdminStore() *MemoryAdminStore {
	return &MemoryAdminStore{
		byID:   map[string]model.Admin{},
		emails: map[string]string{},
	}
}

func (s *MemoryAdminStore) FindByID(_ context.Context, id string) (model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return model.Admin{}, model.ErrAdminNotFound
	}
	return a, nil
}

func (s *MemoryAdminStore) FindByEmail(_ context.Context, email string) (model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return model.Admin{}, model.ErrAdminNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryAdminStore) FindByRefreshToken(_ context.Context, refreshToken string) (model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.byID {
		if a.RefreshToken != nil && *a.RefreshToken == refreshToken {
			return a, nil
		}
	}
	return model.Admin{}, model.ErrAdminNotFound
}

func (s *MemoryAdminStore) Create(_ context.Context, a model.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(a.Email)
	if _, exists := s.emails[key]; exists {
		return model.ErrDuplicateIdentity
	}
	s.byID[a.ID] = a
	s.emails[key] = a.ID
	return nil
}

func (s *MemoryAdminStore) SetRefreshToken(_ context.Context, adminID string, refreshToken string, loginAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[adminID]
	if !ok {
		return model.ErrAdminNotFound
	}
	token := refreshToken
	at := loginAt
	a.RefreshToken = &token
	a.LastLoginAt = &at
	a.UpdatedAt = loginAt
	s.byID[adminID] = a
	return nil
}

func (s *MemoryAdminStore) ClearRefreshToken(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.byID {
		if a.RefreshToken != nil && *a.RefreshToken == refreshToken {
			a.RefreshToken = nil
			a.UpdatedAt = time.Now().UTC()
			s.byID[id] = a
		}
	}
	return nil
}

func (s *MemoryAdminStore) UpdateProfile(_ context.Context, adminID string, email string, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[adminID]
	if !ok {
		return model.ErrAdminNotFound
	}

	key := normalizeEmail(email)
	if owner, exists := s.emails[key]; exists && owner != adminID {
		return model.ErrDuplicateIdentity
	}

	delete(s.emails, normalizeEmail(a.Email))
	a.Email = strings.TrimSpace(email)
	a.DisplayName = strings.TrimSpace(displayName)
	a.UpdatedAt = time.Now().UTC()
	s.byID[adminID] = a
	s.emails[key] = adminID
	return nil
}

func (s *MemoryAdminStore) UpdatePassword(_ context.Context, adminID string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[adminID]
	if !ok {
		return model.ErrAdminNotFound
	}
	a.PasswordHash = passwordHash
	a.RefreshToken = nil
	a.UpdatedAt = time.Now().UTC()
	s.byID[adminID] = a
	return nil
}

func (s *MemoryAdminStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// SetActive flips the active flag directly; tests use it to simulate an
// operator deactivating an account mid-session.
func (s *MemoryAdminStore) SetActive(adminID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.byID[adminID]; ok {
		a.Active = active
		s.byID[adminID] = a
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
