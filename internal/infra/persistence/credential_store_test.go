package persistence

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"terminal/config"
	"terminal/internal/domain/entity"
	"terminal/internal/domain/repository"
	"terminal/internal/infra/persistence/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTieredStore(t *testing.T) (repository.CredentialRepository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state.db")

	return openTieredStore(t, path), path
}

// openTieredStore builds a store on the given file; calling it again on the
// same path simulates a process restart (fresh ephemeral tier, same durable file).
func openTieredStore(t *testing.T, path string) repository.CredentialRepository {
	t.Helper()

	cfg := &config.Config{}
	cfg.State.Path = path
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	durable, err := sqlite.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = durable.Close() })

	return NewCredentialStore(durable, logger)
}

func creds(token string, tier entity.PersistenceTier) *entity.Credentials {
	return &entity.Credentials{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		SessionID:    "sess-1",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
		Tier:         tier,
	}
}

func TestLoad_EmptyStore(t *testing.T) {
	store, _ := newTieredStore(t)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, repository.ErrNoCredentials)
}

func TestDurableSave_SurvivesRestart(t *testing.T) {
	store, path := newTieredStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, creds("durable-1", entity.TierDurable)))

	restarted := openTieredStore(t, path)
	loaded, err := restarted.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, "durable-1", loaded.AccessToken)
	assert.Equal(t, entity.TierDurable, loaded.Tier)
}

func TestEphemeralSave_DoesNotSurviveRestart(t *testing.T) {
	store, path := newTieredStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, creds("ephemeral-1", entity.TierEphemeral)))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ephemeral-1", loaded.AccessToken)
	assert.Equal(t, entity.TierEphemeral, loaded.Tier)

	restarted := openTieredStore(t, path)
	_, err = restarted.Load(ctx)
	assert.ErrorIs(t, err, repository.ErrNoCredentials)
}

func TestSave_AtMostOneActiveSet(t *testing.T) {
	t.Run("ephemeral save clears durable tier", func(t *testing.T) {
		store, path := newTieredStore(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, creds("durable-1", entity.TierDurable)))
		require.NoError(t, store.Save(ctx, creds("ephemeral-1", entity.TierEphemeral)))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ephemeral-1", loaded.AccessToken)

		// The old durable set must not resurface after a restart.
		restarted := openTieredStore(t, path)
		_, err = restarted.Load(ctx)
		assert.ErrorIs(t, err, repository.ErrNoCredentials)
	})

	t.Run("durable save clears ephemeral tier", func(t *testing.T) {
		store, _ := newTieredStore(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, creds("ephemeral-1", entity.TierEphemeral)))
		require.NoError(t, store.Save(ctx, creds("durable-1", entity.TierDurable)))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "durable-1", loaded.AccessToken)
		assert.Equal(t, entity.TierDurable, loaded.Tier)
	})
}

func TestClear_EmptiesBothTiers(t *testing.T) {
	store, _ := newTieredStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, creds("durable-1", entity.TierDurable)))
	require.NoError(t, store.Clear(ctx))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, repository.ErrNoCredentials)

	require.NoError(t, store.Save(ctx, creds("ephemeral-1", entity.TierEphemeral)))
	require.NoError(t, store.Clear(ctx))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, repository.ErrNoCredentials)

	// Idempotent.
	require.NoError(t, store.Clear(ctx))
}
