// Package memory is the ephemeral tier of local storage: credentials saved
// without "remember me" live here and vanish with the process.
package memory

import (
	"context"
	"sync"

	"terminal/internal/domain/entity"
	"terminal/internal/domain/repository"
)

// CredentialStore keeps at most one credential set in process memory.
type CredentialStore struct {
	mu    sync.Mutex
	creds *entity.Credentials
}

// NewCredentialStore is the constructor for the in-memory tier.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// SaveCredentials replaces the held credential set.
func (s *CredentialStore) SaveCredentials(_ context.Context, creds *entity.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *creds
	s.creds = &clone

	return nil
}

// LoadCredentials returns the held credential set, or ErrNoCredentials.
func (s *CredentialStore) LoadCredentials(_ context.Context) (*entity.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil {
		return nil, repository.ErrNoCredentials
	}

	clone := *s.creds
	clone.Tier = entity.TierEphemeral

	return &clone, nil
}

// ClearCredentials drops the held credential set. Idempotent.
func (s *CredentialStore) ClearCredentials(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = nil

	return nil
}
