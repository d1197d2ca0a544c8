package repository

import (
	"context"

	"terminal/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrNoPreference is returned when a preference key has never been saved.
var ErrNoPreference = errors.New("preference not set")

// PreferenceRepository persists non-credential local state: the last visited
// screen and the last selected trading pair. Both are best effort; a corrupt
// stored value surfaces as domainerrors.ErrMalformedLocalState and callers
// fall back to defaults instead of failing startup.
type PreferenceRepository interface {
	// SaveLastScreen stores the screen name verbatim. Validation against the
	// allow-list happens on restore, not on save.
	SaveLastScreen(ctx context.Context, screen string) error

	// LastScreen returns the persisted screen name, or ErrNoPreference.
	LastScreen(ctx context.Context) (string, error)

	// SaveLastPair stores the selected trading pair.
	SaveLastPair(ctx context.Context, pair *entity.TradingPair) error

	// LastPair returns the persisted pair, ErrNoPreference when unset, or
	// domainerrors.ErrMalformedLocalState when the stored value is corrupt.
	LastPair(ctx context.Context) (*entity.TradingPair, error)
}
