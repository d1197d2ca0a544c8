package impl

import (
	"context"
	"log/slog"
	"sync"

	"terminal/config"
	"terminal/internal/domain/entity"
	domainerrors "terminal/internal/domain/errors"
	"terminal/internal/domain/repository"
	"terminal/internal/domain/service"
	"terminal/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// notificationChannel is the push channel subscribed on login.
const notificationChannel = "notifications"

// notificationEvent is the inbound event name carrying feed entries.
const notificationEvent = "notification"

// sessionService implements the SessionUsecase interface: the state machine
// that owns authentication state and coordinates the refresh scheduler and
// the realtime channel with it.
//
// All public operations serialize on one mutex; the only suspension points
// are network calls and the scheduler's timer wait, so state transitions
// never interleave at sub-operation granularity.
type sessionService struct {
	gateway       service.AuthGateway
	feed          service.NotificationFeed
	channel       service.RealtimeChannel
	credRepo      repository.CredentialRepository
	prefRepo      repository.PreferenceRepository
	notifications usecase.NotificationUsecase
	scheduler     *refreshScheduler
	advisory      usecase.AdvisoryFunc
	backfillLimit int
	validate      *validator.Validate
	logger        *slog.Logger

	mu    sync.Mutex
	state entity.SessionState
	user  *entity.User
	subs  []service.Subscription
}

// SessionServiceParams holds dependencies for the session service, injected by Fx.
type SessionServiceParams struct {
	fx.In

	Gateway        service.AuthGateway
	Feed           service.NotificationFeed
	Channel        service.RealtimeChannel
	CredentialRepo repository.CredentialRepository
	PreferenceRepo repository.PreferenceRepository
	Notifications  usecase.NotificationUsecase
	Config         *config.Config
	Logger         *slog.Logger
	Advisory       usecase.AdvisoryFunc `optional:"true"`
}

// NewSessionService is the constructor for sessionService. The refresh
// scheduler is owned by the orchestrator: nothing else holds the timer.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	srv := &sessionService{
		gateway:       params.Gateway,
		feed:          params.Feed,
		channel:       params.Channel,
		credRepo:      params.CredentialRepo,
		prefRepo:      params.PreferenceRepo,
		notifications: params.Notifications,
		advisory:      params.Advisory,
		backfillLimit: params.Config.Notifications.BackfillLimit,
		validate:      validator.New(),
		logger:        params.Logger,
		state:         entity.SessionInitializing,
	}

	srv.scheduler = newRefreshScheduler(
		params.Gateway,
		params.CredentialRepo,
		params.Config.Session,
		params.Logger,
		params.Advisory,
		srv.handleUnauthorized,
	)

	return srv
}

// Bootstrap decides the initial session state from stored credentials.
// It runs exactly once; Initializing is never re-entered.
func (srv *sessionService) Bootstrap(ctx context.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.state != entity.SessionInitializing {
		return errors.New("bootstrap may only run once")
	}

	creds, err := srv.credRepo.Load(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNoCredentials) {
			srv.logger.Error("Failed to load stored credentials", slog.Any("error", err))
		}
		srv.transitionLocked(entity.SessionUnauthenticated)

		return nil
	}

	user, err := srv.gateway.FetchCurrentUser(ctx, creds.AccessToken)
	switch {
	case err == nil:
		srv.user = user
		srv.enterAuthenticatedLocked(ctx, creds)

	case errors.Is(err, domainerrors.ErrUnauthorized):
		srv.logger.Info("Stored credentials rejected, starting signed out")
		if clearErr := srv.credRepo.Clear(ctx); clearErr != nil {
			srv.logger.Error("Failed to clear rejected credentials", slog.Any("error", clearErr))
		}
		srv.transitionLocked(entity.SessionUnauthenticated)

	default:
		// Transient outage: trust the cached token optimistically so a flaky
		// network never signs the user out. Identity stays as cached until
		// the next successful call.
		srv.logger.Warn("Identity check unavailable, trusting stored session", slog.Any("error", err))
		srv.notify("Signed in from saved session; some account details may be stale.")
		srv.enterAuthenticatedLocked(ctx, creds)
	}

	return nil
}

// Login signs the user in and brings the session services up.
func (srv *sessionService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	if err := srv.validate.Struct(input); err != nil {
		return nil, domainerrors.ErrInvalidInput.WrapMessage(err.Error())
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.state == entity.SessionInitializing {
		return nil, errors.New("login before bootstrap")
	}
	if srv.state == entity.SessionAuthenticated {
		return nil, errors.New("already signed in")
	}

	srv.logger.Debug("Starting login", slog.String("identifier", input.Identifier))

	result, err := srv.gateway.Login(ctx, input.Identifier, input.Secret)
	if err != nil {
		srv.logger.Warn("Login failed", slog.String("identifier", input.Identifier), slog.Any("error", err))

		return nil, errors.Wrap(err, "login failed")
	}

	// The retention tier is an explicit property of the credential set,
	// threaded through every write from here on.
	creds := result.Credentials
	creds.Tier = entity.TierEphemeral
	if input.RememberMe {
		creds.Tier = entity.TierDurable
	}

	if err := srv.credRepo.Save(ctx, creds); err != nil {
		return nil, errors.Wrap(err, "failed to persist credentials")
	}

	srv.user = result.User
	srv.enterAuthenticatedLocked(ctx, creds)
	srv.logger.Info("User signed in", slog.String("user_id", result.User.ID))

	return &usecase.LoginOutput{User: result.User}, nil
}

// Logout tears the session down. Idempotent.
func (srv *sessionService) Logout(ctx context.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.state != entity.SessionAuthenticated {
		return nil
	}

	srv.logger.Info("Logging out")
	srv.teardownLocked(ctx)

	return nil
}

// State returns the current session state.
func (srv *sessionService) State() entity.SessionState {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	return srv.state
}

// CurrentUser returns the signed-in user, or nil.
func (srv *sessionService) CurrentUser() *entity.User {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.user == nil {
		return nil
	}

	clone := *srv.user

	return &clone
}

// LandingScreen resolves the screen to restore after bootstrap. Unknown
// destinations, corrupt persisted values and a trading screen without a
// persisted pair all fall back to the default landing screen silently.
func (srv *sessionService) LandingScreen(ctx context.Context) string {
	screen, err := srv.prefRepo.LastScreen(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNoPreference) {
			srv.logger.Debug("Discarding persisted screen", slog.Any("error", err))
		}

		return entity.DefaultScreen
	}

	if !entity.AllowedScreen(screen) {
		srv.logger.Debug("Persisted screen not in allow-list", slog.String("screen", screen))

		return entity.DefaultScreen
	}

	if screen == entity.ScreenTrading {
		if _, err := srv.prefRepo.LastPair(ctx); err != nil {
			// A trading screen with no pair would render blank.
			srv.logger.Debug("No usable pair for trading screen", slog.Any("error", err))

			return entity.DefaultScreen
		}
	}

	return screen
}

// SaveLastScreen persists the visited screen name verbatim; validation
// against the allow-list happens on restore.
func (srv *sessionService) SaveLastScreen(ctx context.Context, screen string) error {
	return errors.Wrap(srv.prefRepo.SaveLastScreen(ctx, screen), "failed to save screen")
}

// SaveLastPair persists the selected trading pair.
func (srv *sessionService) SaveLastPair(ctx context.Context, pair *entity.TradingPair) error {
	return errors.Wrap(srv.prefRepo.SaveLastPair(ctx, pair), "failed to save pair")
}

// Shutdown releases timers and connections without ending the session.
func (srv *sessionService) Shutdown() {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.scheduler.Stop()
	srv.closeSubscriptionsLocked()
	srv.channel.Disconnect()
}

// enterAuthenticatedLocked performs the side effects of the edge into
// Authenticated: open the channel, start refresh, subscribe, backfill.
// Channel and backfill failures are non-fatal advisories; the session itself
// is already established. Callers hold srv.mu.
func (srv *sessionService) enterAuthenticatedLocked(ctx context.Context, creds *entity.Credentials) {
	srv.transitionLocked(entity.SessionAuthenticated)

	if err := srv.channel.Connect(ctx, creds.AccessToken); err != nil {
		srv.logger.Warn("Realtime channel unavailable", slog.Any("error", err))
		srv.notify("Live notifications are temporarily unavailable.")
	}

	srv.scheduler.Start()

	sub := srv.channel.On(notificationEvent, func(event entity.NotificationEvent) {
		srv.notifications.Add(entity.RecordFromEvent(event))
	})
	srv.subs = append(srv.subs, sub)

	// A recovered channel may have dropped pushes while it was down, so the
	// backfill runs again; the feed de-duplicates any overlap by id.
	recSub := srv.channel.OnReconnect(srv.handleChannelRecovery)
	srv.subs = append(srv.subs, recSub)

	if err := srv.channel.Subscribe(notificationChannel); err != nil {
		srv.logger.Warn("Channel subscribe failed", slog.Any("error", err))
	}

	srv.backfillLocked(ctx, creds.AccessToken)
}

// backfillLocked merges the one-time REST backfill into the feed.
func (srv *sessionService) backfillLocked(ctx context.Context, accessToken string) {
	records, err := srv.feed.Recent(ctx, accessToken, srv.backfillLimit)
	if err != nil {
		srv.logger.Warn("Notification backfill failed", slog.Any("error", err))
		srv.notify("Could not load recent notifications.")

		return
	}

	// The feed arrives newest first and Add prepends, so insert oldest
	// first to keep the store ordered newest first.
	for i := len(records) - 1; i >= 0; i-- {
		srv.notifications.Add(records[i])
	}
}

// teardownLocked performs the side effects of the edge into Unauthenticated.
// Scheduler stop is synchronous and completes before the store is cleared.
// Callers hold srv.mu.
func (srv *sessionService) teardownLocked(ctx context.Context) {
	srv.channel.Disconnect()
	srv.scheduler.Stop()
	srv.closeSubscriptionsLocked()

	if err := srv.credRepo.Clear(ctx); err != nil {
		srv.logger.Error("Failed to clear credentials", slog.Any("error", err))
	}

	srv.user = nil
	srv.transitionLocked(entity.SessionUnauthenticated)
}

// handleChannelRecovery reacts to the channel's reconnect outcome. The session
// itself never ends over a lost channel; permanent loss is an advisory only.
func (srv *sessionService) handleChannelRecovery(err error) {
	if err != nil {
		srv.notify("Live notifications are unavailable; recent items may be missing.")

		return
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.state != entity.SessionAuthenticated {
		return
	}

	ctx := context.Background()
	creds, loadErr := srv.credRepo.Load(ctx)
	if loadErr != nil {
		srv.logger.Warn("No credentials for post-reconnect backfill", slog.Any("error", loadErr))

		return
	}

	srv.backfillLocked(ctx, creds.AccessToken)
}

// handleUnauthorized reacts to the scheduler's terminal refresh failure.
func (srv *sessionService) handleUnauthorized() {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.state != entity.SessionAuthenticated {
		return
	}

	srv.logger.Info("Session expired, signing out")
	srv.teardownLocked(context.Background())
	srv.notify("Your session has expired. Please sign in again.")
}

func (srv *sessionService) closeSubscriptionsLocked() {
	for _, sub := range srv.subs {
		sub.Close()
	}
	srv.subs = nil
}

func (srv *sessionService) transitionLocked(next entity.SessionState) {
	if srv.state == next {
		return
	}

	srv.logger.Info("Session state changed",
		slog.String("from", srv.state.String()),
		slog.String("to", next.String()))
	srv.state = next
}

func (srv *sessionService) notify(message string) {
	if srv.advisory != nil {
		srv.advisory(message)
	}
}
