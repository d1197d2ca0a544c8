// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"terminal/internal/domain/entity"

	"github.com/pkg/errors"
)

// Domain-specific errors for credential persistence.
var (
	// ErrNoCredentials is returned when no credential set has been saved.
	ErrNoCredentials = errors.New("no stored credentials")
)

// CredentialRepository is the contract for the two-tier credential store.
// It is pure storage: no network calls and no validation live behind it.
//
// The retention tier is taken from the explicit Tier field on the credential
// set; a durable save survives a full process restart, an ephemeral save does
// not. Load returns the most recently saved set regardless of tier.
type CredentialRepository interface {
	// Save persists the credential set, replacing any previously saved one.
	Save(ctx context.Context, creds *entity.Credentials) error

	// Load retrieves the current credential set, or ErrNoCredentials.
	Load(ctx context.Context) (*entity.Credentials, error)

	// Clear removes the credential set from every tier. Idempotent.
	Clear(ctx context.Context) error
}
