// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"terminal/internal/domain/entity"
)

// AdvisoryFunc receives non-blocking, user-dismissible warning messages.
// Transient failures surface here; they never block an operation and never
// end the session.
type AdvisoryFunc func(message string)

// --- Input DTOs ---

// LoginInput defines the data required for a user to log in. The identifier
// is opaque to the client; the platform decides whether it is an email, a
// username or anything else.
type LoginInput struct {
	Identifier string `validate:"required"`
	Secret     string `validate:"required"`

	// RememberMe selects the durable credential tier so the session
	// survives a process restart.
	RememberMe bool
}

// --- Output DTOs ---

// LoginOutput returns the signed-in user after a successful login.
type LoginOutput struct {
	User *entity.User
}

// SessionUsecase is the session orchestrator: the single owner of the
// authentication state machine. This is the contract the UI layer depends on.
type SessionUsecase interface {
	// Bootstrap runs once at process start and moves the session from
	// Initializing to exactly one of Unauthenticated or Authenticated.
	// A stored token with a transient /me failure is trusted optimistically:
	// the user stays signed in and a warning is surfaced.
	Bootstrap(ctx context.Context) error

	// Login signs in, persists credentials under the requested tier, opens
	// the realtime channel, starts token refresh and backfills notifications.
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)

	// Logout tears the session down: channel disconnected, refresh stopped,
	// credentials cleared. Idempotent.
	Logout(ctx context.Context) error

	// State returns the current session state.
	State() entity.SessionState

	// CurrentUser returns the signed-in user, or nil.
	CurrentUser() *entity.User

	// LandingScreen resolves the screen to restore after bootstrap,
	// falling back to the default for unknown or unusable destinations.
	LandingScreen(ctx context.Context) string

	// SaveLastScreen persists the visited screen name verbatim.
	SaveLastScreen(ctx context.Context, screen string) error

	// SaveLastPair persists the selected trading pair.
	SaveLastPair(ctx context.Context, pair *entity.TradingPair) error

	// Shutdown releases timers and connections without ending the session;
	// credentials stay in place for the next bootstrap.
	Shutdown()
}
