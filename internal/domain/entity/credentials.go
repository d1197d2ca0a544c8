// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"
)

// PersistenceTier describes how long a saved credential set must survive.
type PersistenceTier string

const (
	// TierDurable survives a full process restart ("remember me" logins).
	TierDurable PersistenceTier = "durable"
	// TierEphemeral lives only as long as the current process.
	TierEphemeral PersistenceTier = "ephemeral"
)

// Credentials represents the single active credential set for the signed-in user.
// At most one set exists at a time; an empty access token means unauthenticated.
type Credentials struct {
	AccessToken  string          `json:"access_token"`  // Short-lived bearer token presented on every API call.
	RefreshToken string          `json:"refresh_token"` // Long-lived token exchanged for a new access token.
	SessionID    string          `json:"session_id"`    // Server-side session identifier for this login.
	ExpiresAt    time.Time       `json:"expires_at"`    // Absolute expiry of the access token, derived client-side.
	Tier         PersistenceTier `json:"tier"`          // Retention tier this set was saved under.
}

// Authenticated reports whether the credential set can authorize requests.
func (c *Credentials) Authenticated() bool {
	return c != nil && c.AccessToken != ""
}

// HasExpiry reports whether the access token expiry is known.
func (c *Credentials) HasExpiry() bool {
	return c != nil && !c.ExpiresAt.IsZero()
}
