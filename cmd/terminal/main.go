package main

import (
	"context"
	"log/slog"

	"terminal/config"
	"terminal/internal/infra/api"
	logs "terminal/internal/infra/log"
	"terminal/internal/infra/persistence"
	"terminal/internal/infra/persistence/sqlite"
	"terminal/internal/infra/realtime"
	"terminal/internal/usecase"
	"terminal/internal/usecase/impl"

	"go.uber.org/fx"
)

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		fx.Invoke(
			runSession,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		sqlite.New,
		newAdvisory,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			persistence.NewCredentialStore,
			persistence.NewPreferenceRepository,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			api.NewAuthGateway,
			api.NewNotificationFeed,
			realtime.NewChannel,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewNotificationStore,
			impl.NewSessionService,
		),
	)
}

// newAdvisory routes non-blocking advisories to the log; a UI embedding this
// core replaces it with its own toast/banner sink.
func newAdvisory(logger *slog.Logger) usecase.AdvisoryFunc {
	return func(message string) {
		logger.Warn("Advisory", slog.String("message", message))
	}
}

type runSessionParams struct {
	fx.In
	fx.Lifecycle

	Session usecase.SessionUsecase
	Store   *sqlite.Store
	Logger  *slog.Logger
}

// runSession ties the session lifecycle to the fx application lifecycle:
// bootstrap on start, release resources (without logging out) on stop.
func runSession(params runSessionParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := params.Session.Bootstrap(ctx); err != nil {
				return err
			}

			params.Logger.Info("Session ready",
				slog.String("state", params.Session.State().String()),
				slog.String("screen", params.Session.LandingScreen(ctx)))

			return nil
		},
		OnStop: func(context.Context) error {
			params.Session.Shutdown()

			return params.Store.Close()
		},
	})
}
