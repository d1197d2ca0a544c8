package impl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"terminal/config"
	"terminal/internal/domain/entity"
	domainerrors "terminal/internal/domain/errors"
	"terminal/internal/domain/repository"
	"terminal/internal/domain/service"
	"terminal/internal/usecase"

	"github.com/pkg/errors"
)

// schedulerState tracks where the refresh cycle currently is.
type schedulerState int

const (
	schedulerIdle schedulerState = iota
	schedulerScheduled
	schedulerRunning
)

// refreshScheduler proactively renews the access token before it expires.
//
// At most one timer is pending at any instant: Start and Stop bump a
// generation counter, and every armed timer and in-flight refresh carries the
// generation it was created under. A stale generation discards its result,
// which makes "logout while a refresh is in flight" race-safe without
// cancelling the request mid-flight.
type refreshScheduler struct {
	gateway  service.AuthGateway
	creds    repository.CredentialRepository
	logger   *slog.Logger
	advisory usecase.AdvisoryFunc

	// onUnauthorized tells the session orchestrator the refresh token was
	// rejected; the scheduler itself has already cleared the store and
	// stopped by the time it fires.
	onUnauthorized func()

	safetyBuffer   time.Duration
	floor          time.Duration
	fallback       time.Duration
	transientRetry time.Duration

	mu    sync.Mutex
	state schedulerState
	timer *time.Timer
	gen   uint64
}

func newRefreshScheduler(
	gateway service.AuthGateway,
	creds repository.CredentialRepository,
	cfg *config.SessionConfig,
	logger *slog.Logger,
	advisory usecase.AdvisoryFunc,
	onUnauthorized func(),
) *refreshScheduler {
	return &refreshScheduler{
		gateway:        gateway,
		creds:          creds,
		logger:         logger,
		advisory:       advisory,
		onUnauthorized: onUnauthorized,
		safetyBuffer:   cfg.SafetyBuffer,
		floor:          cfg.Floor,
		fallback:       cfg.FallbackInterval,
		transientRetry: cfg.TransientRetry,
	}
}

// Start arms the refresh timer from the current credential expiry, cancelling
// any previously pending timer first. Idempotent: calling it twice never
// leaves two live timers.
func (s *refreshScheduler) Start() {
	creds, err := s.creds.Load(context.Background())
	if err != nil && !errors.Is(err, repository.ErrNoCredentials) {
		s.logger.Error("Failed to load credentials for refresh scheduling", slog.Any("error", err))
	}

	delay := s.refreshDelay(creds)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.armLocked(s.gen, delay)
	s.logger.Debug("Refresh scheduled", slog.Duration("delay", delay))
}

// Stop cancels any pending timer and returns to idle. Idempotent and
// synchronous: once it returns, no armed timer remains and any refresh still
// in flight will discard its result.
func (s *refreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = schedulerIdle
}

// refreshDelay computes how long to wait before the next refresh:
// max(floor, expiresAt - now - safetyBuffer), or the conservative fallback
// interval when no expiry is known.
func (s *refreshScheduler) refreshDelay(creds *entity.Credentials) time.Duration {
	if !creds.HasExpiry() {
		return s.fallback
	}

	delay := time.Until(creds.ExpiresAt) - s.safetyBuffer
	if delay < s.floor {
		return s.floor
	}

	return delay
}

// armLocked replaces the pending timer. Callers hold s.mu.
func (s *refreshScheduler) armLocked(gen uint64, delay time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.state = schedulerScheduled
	s.timer = time.AfterFunc(delay, func() { s.fire(gen) })
}

// fire runs one refresh cycle for the given generation.
func (s *refreshScheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()

		return
	}
	s.state = schedulerRunning
	s.timer = nil
	s.mu.Unlock()

	ctx := context.Background()

	creds, err := s.creds.Load(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoCredentials) {
			// Logout raced the timer: nothing to refresh, stay armed in case
			// a new login lands before the next cycle.
			s.rearm(gen, s.fallback)

			return
		}

		// Storage hiccup, not an empty store: retry soon so a failure near
		// expiry cannot postpone renewal past the token's lifetime.
		s.logger.Error("Failed to load credentials for refresh", slog.Any("error", err))
		s.rearm(gen, s.transientRetry)

		return
	}

	renewed, err := s.gateway.Refresh(ctx, creds.AccessToken, creds.RefreshToken)
	switch {
	case err == nil:
		if s.staleGen(gen) {
			// Logout won while the request was in flight: the renewed set
			// must not resurrect a session the user just ended.
			return
		}

		// Same retention tier as before: the tier is an explicit property of
		// the credential set, never inferred.
		renewed.Tier = creds.Tier
		if renewed.SessionID == "" {
			renewed.SessionID = creds.SessionID
		}

		if saveErr := s.creds.Save(ctx, renewed); saveErr != nil {
			s.logger.Error("Failed to persist renewed credentials", slog.Any("error", saveErr))
		}

		delay := s.refreshDelay(renewed)
		s.rearm(gen, delay)
		s.logger.Debug("Access token refreshed", slog.Duration("next", delay))

	case errors.Is(err, domainerrors.ErrUnauthorized):
		if s.staleGen(gen) {
			// The rejection is about a credential set that is no longer
			// current; clearing the store now would wipe a newer login.
			return
		}

		s.logger.Warn("Refresh token rejected, ending session", slog.Any("error", err))

		if clearErr := s.creds.Clear(ctx); clearErr != nil {
			s.logger.Error("Failed to clear credentials", slog.Any("error", clearErr))
		}

		stale := s.stopIfCurrent(gen)
		if !stale && s.onUnauthorized != nil {
			s.onUnauthorized()
		}

	default:
		// Transient: keep the credentials, retry on a short fixed delay and
		// surface a non-blocking advisory.
		s.logger.Warn("Token refresh failed, will retry", slog.Any("error", err))
		s.notify("Unable to reach the trading service; retrying shortly.")
		s.rearm(gen, s.transientRetry)
	}
}

// rearm schedules the next cycle unless the generation went stale meanwhile.
func (s *refreshScheduler) rearm(gen uint64, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.armLocked(gen, delay)
}

// stopIfCurrent moves to idle and reports whether the generation was stale.
func (s *refreshScheduler) stopIfCurrent(gen uint64) (stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return true
	}

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = schedulerIdle

	return false
}

func (s *refreshScheduler) staleGen(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return gen != s.gen
}

func (s *refreshScheduler) notify(message string) {
	if s.advisory != nil {
		s.advisory(message)
	}
}

// pendingTimers reports how many timers are currently armed (0 or 1).
func (s *refreshScheduler) pendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		return 1
	}

	return 0
}
