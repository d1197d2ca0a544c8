// Package sqlite is the durable tier of local storage: the credential set
// saved under "remember me" and the non-credential preferences (last screen,
// last pair). Backed by a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"log/slog"
	"time"

	"terminal/config"
	"terminal/internal/domain/entity"
	domainerrors "terminal/internal/domain/errors"
	"terminal/internal/domain/repository"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const (
	keyLastScreen = "last_screen"
	keyLastPair   = "last_pair"
)

// Store is the SQLite-backed durable store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the state database at the configured path.
func New(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.State.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open state database")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "set WAL mode")
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "create schema")
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCredentials replaces the durable credential row.
func (s *Store) SaveCredentials(ctx context.Context, creds *entity.Credentials) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, access_token, refresh_token, session_id, expires_at, saved_at)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   session_id = excluded.session_id,
		   expires_at = excluded.expires_at,
		   saved_at = excluded.saved_at`,
		creds.AccessToken,
		creds.RefreshToken,
		creds.SessionID,
		creds.ExpiresAt.Format(time.RFC3339Nano),
		time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "save credentials")
	}

	return nil
}

// LoadCredentials returns the durable credential set, or ErrNoCredentials.
func (s *Store) LoadCredentials(ctx context.Context) (*entity.Credentials, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, session_id, expires_at FROM credentials WHERE id = 1`)

	var creds entity.Credentials
	var expiresAt string
	err := row.Scan(&creds.AccessToken, &creds.RefreshToken, &creds.SessionID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "load credentials")
	}

	// An unparsable expiry degrades to "expiry unknown"; the refresh
	// scheduler then falls back to its conservative interval.
	if parsed, parseErr := time.Parse(time.RFC3339Nano, expiresAt); parseErr == nil {
		creds.ExpiresAt = parsed
	}
	creds.Tier = entity.TierDurable

	return &creds, nil
}

// ClearCredentials removes the durable credential row. Idempotent.
func (s *Store) ClearCredentials(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1`); err != nil {
		return errors.Wrap(err, "clear credentials")
	}

	return nil
}

// SaveLastScreen stores the screen name verbatim.
func (s *Store) SaveLastScreen(ctx context.Context, screen string) error {
	return s.savePreference(ctx, keyLastScreen, screen)
}

// LastScreen returns the persisted screen name, or ErrNoPreference.
func (s *Store) LastScreen(ctx context.Context) (string, error) {
	return s.loadPreference(ctx, keyLastScreen)
}

// SaveLastPair stores the selected trading pair as JSON.
func (s *Store) SaveLastPair(ctx context.Context, pair *entity.TradingPair) error {
	encoded, err := json.Marshal(pair)
	if err != nil {
		return errors.Wrap(err, "encode pair")
	}

	return s.savePreference(ctx, keyLastPair, string(encoded))
}

// LastPair returns the persisted pair. A corrupt stored value is reported as
// ErrMalformedLocalState so callers can fall back to defaults silently.
func (s *Store) LastPair(ctx context.Context) (*entity.TradingPair, error) {
	raw, err := s.loadPreference(ctx, keyLastPair)
	if err != nil {
		return nil, err
	}

	var pair entity.TradingPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return nil, domainerrors.ErrMalformedLocalState.WrapMessage("decode pair: " + err.Error())
	}
	if pair.Symbol == "" {
		return nil, domainerrors.ErrMalformedLocalState.WrapMessage("pair has no symbol")
	}

	return &pair, nil
}

func (s *Store) savePreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return errors.Wrapf(err, "save preference %s", key)
	}

	return nil
}

func (s *Store) loadPreference(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNoPreference
	}
	if err != nil {
		return "", errors.Wrapf(err, "load preference %s", key)
	}

	return value, nil
}
