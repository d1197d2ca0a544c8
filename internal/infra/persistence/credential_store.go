// Package persistence composes the storage tiers into the credential store
// contract: durable saves survive a restart, ephemeral saves do not, and at
// most one credential set is active across both tiers.
package persistence

import (
	"context"
	"log/slog"

	"terminal/internal/domain/entity"
	"terminal/internal/domain/repository"
	"terminal/internal/infra/persistence/memory"
	"terminal/internal/infra/persistence/sqlite"

	"github.com/pkg/errors"
)

// credentialTier is the storage surface each tier provides.
type credentialTier interface {
	SaveCredentials(ctx context.Context, creds *entity.Credentials) error
	LoadCredentials(ctx context.Context) (*entity.Credentials, error)
	ClearCredentials(ctx context.Context) error
}

// credentialStore routes writes by the explicit tier on the credential set.
// Saving to one tier clears the other, which keeps "at most one active set"
// true without having to infer the tier by comparing stored values.
type credentialStore struct {
	durable   credentialTier
	ephemeral credentialTier
	logger    *slog.Logger
}

// NewCredentialStore is the constructor for the two-tier credential store.
func NewCredentialStore(durable *sqlite.Store, logger *slog.Logger) repository.CredentialRepository {
	return &credentialStore{
		durable:   durable,
		ephemeral: memory.NewCredentialStore(),
		logger:    logger,
	}
}

// Save persists under the tier carried by the credential set itself.
func (s *credentialStore) Save(ctx context.Context, creds *entity.Credentials) error {
	if creds.Tier == entity.TierDurable {
		if err := s.durable.SaveCredentials(ctx, creds); err != nil {
			return errors.Wrap(err, "save durable credentials")
		}

		return s.ephemeral.ClearCredentials(ctx)
	}

	if err := s.ephemeral.SaveCredentials(ctx, creds); err != nil {
		return errors.Wrap(err, "save ephemeral credentials")
	}

	return s.durable.ClearCredentials(ctx)
}

// Load returns the active credential set regardless of tier.
func (s *credentialStore) Load(ctx context.Context) (*entity.Credentials, error) {
	creds, err := s.ephemeral.LoadCredentials(ctx)
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, repository.ErrNoCredentials) {
		return nil, err
	}

	return s.durable.LoadCredentials(ctx)
}

// Clear empties both tiers. Idempotent.
func (s *credentialStore) Clear(ctx context.Context) error {
	ephErr := s.ephemeral.ClearCredentials(ctx)
	durErr := s.durable.ClearCredentials(ctx)

	if ephErr != nil {
		return errors.Wrap(ephErr, "clear ephemeral tier")
	}
	if durErr != nil {
		return errors.Wrap(durErr, "clear durable tier")
	}

	return nil
}

// NewPreferenceRepository exposes the SQLite store behind the preference contract.
func NewPreferenceRepository(store *sqlite.Store) repository.PreferenceRepository {
	return store
}
