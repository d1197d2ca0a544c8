// Package service defines contracts for the infrastructure services the
// session core depends on: the identity REST API and the push channel.
package service

import (
	"context"

	"terminal/internal/domain/entity"
)

// LoginResult is the outcome of a successful credential exchange.
type LoginResult struct {
	User        *entity.User
	Credentials *entity.Credentials
}

// AuthGateway exchanges credentials with the remote identity service.
// Every call is a single request/response with no internal retry, and every
// failure is classified exactly once at this boundary:
// domainerrors.ErrUnauthorized when the credentials are permanently invalid
// (the caller must not retry with the same refresh token), or
// domainerrors.ErrTransient when the network or server failed (the caller
// may retry).
type AuthGateway interface {
	// Login exchanges an identifier/secret pair for a user and credentials.
	Login(ctx context.Context, identifier, secret string) (*LoginResult, error)

	// FetchCurrentUser resolves the account behind an access token.
	FetchCurrentUser(ctx context.Context, accessToken string) (*entity.User, error)

	// Refresh exchanges the current token pair for a renewed credential set.
	Refresh(ctx context.Context, accessToken, refreshToken string) (*entity.Credentials, error)
}

// NotificationFeed is the REST backfill source consumed once when a session
// becomes authenticated.
type NotificationFeed interface {
	// Recent returns up to limit notification records, newest first.
	Recent(ctx context.Context, accessToken string, limit int) ([]entity.NotificationRecord, error)
}
