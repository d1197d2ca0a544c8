package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultPath = "."

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	API struct {
		BaseURL string        `json:"baseUrl" yaml:"baseUrl" validate:"required,url"`
		Timeout time.Duration `json:"timeout" yaml:"timeout"`
	} `json:"api" yaml:"api"`

	Realtime struct {
		URL              string        `json:"url" yaml:"url" validate:"required"`
		PingInterval     time.Duration `json:"pingInterval" yaml:"pingInterval"`
		HandshakeTimeout time.Duration `json:"handshakeTimeout" yaml:"handshakeTimeout"`

		// ReconnectWait is the first backoff delay after a dropped
		// connection; each further attempt doubles it.
		ReconnectWait time.Duration `json:"reconnectWait" yaml:"reconnectWait"`

		// ReconnectAttempts bounds how many redials are made before the
		// channel gives up until the next explicit Connect.
		ReconnectAttempts int `json:"reconnectAttempts" yaml:"reconnectAttempts"`
	} `json:"realtime" yaml:"realtime"`

	// Session tunes the refresh scheduler.
	Session *SessionConfig `json:"session" yaml:"session"`

	// Notifications tunes the client-side feed.
	Notifications *NotificationsConfig `json:"notifications" yaml:"notifications"`

	// State locates the local durable store.
	State struct {
		Path string `json:"path" yaml:"path"`
	} `json:"state" yaml:"state"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// SessionConfig defines refresh scheduler timing. Zero values fall back to
// the fixed defaults applied in New.
type SessionConfig struct {
	// SafetyBuffer is subtracted from the access token expiry when computing
	// the refresh delay, so renewal lands before expiry.
	SafetyBuffer time.Duration `json:"safetyBuffer" yaml:"safetyBuffer"`

	// Floor is the minimum refresh delay.
	Floor time.Duration `json:"floor" yaml:"floor"`

	// FallbackInterval is used when the token expiry is unknown.
	FallbackInterval time.Duration `json:"fallbackInterval" yaml:"fallbackInterval"`

	// TransientRetry is the fixed short delay after a transient refresh failure.
	TransientRetry time.Duration `json:"transientRetry" yaml:"transientRetry"`
}

// NotificationsConfig defines the feed bounds.
type NotificationsConfig struct {
	// Cap is the maximum number of records kept in the feed.
	Cap int `json:"cap" yaml:"cap"`

	// BackfillLimit is the page size of the one-time REST backfill.
	BackfillLimit int `json:"backfillLimit" yaml:"backfillLimit"`
}

// Defaults applied in New when the yaml leaves a value unset.
const (
	DefaultAPITimeout        = 15 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultReconnectWait     = 2 * time.Second
	DefaultReconnectAttempts = 5
	DefaultSafetyBuffer      = time.Minute
	DefaultFloor             = 2 * time.Second
	DefaultFallbackInterval  = 55 * time.Minute
	DefaultTransientRetry    = 30 * time.Second
	DefaultNotificationCap   = 100
	DefaultBackfillLimit     = 20
	DefaultStatePath         = "terminal.db"
)

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: API_BASEURL -> api.baseUrl (not api.baseurl)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}
	if cfg.Realtime.PingInterval <= 0 {
		cfg.Realtime.PingInterval = DefaultPingInterval
	}
	if cfg.Realtime.ReconnectWait <= 0 {
		cfg.Realtime.ReconnectWait = DefaultReconnectWait
	}
	if cfg.Realtime.ReconnectAttempts <= 0 {
		cfg.Realtime.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.Session == nil {
		cfg.Session = &SessionConfig{}
	}
	if cfg.Session.SafetyBuffer <= 0 {
		cfg.Session.SafetyBuffer = DefaultSafetyBuffer
	}
	if cfg.Session.Floor <= 0 {
		cfg.Session.Floor = DefaultFloor
	}
	if cfg.Session.FallbackInterval <= 0 {
		cfg.Session.FallbackInterval = DefaultFallbackInterval
	}
	if cfg.Session.TransientRetry <= 0 {
		cfg.Session.TransientRetry = DefaultTransientRetry
	}
	if cfg.Notifications == nil {
		cfg.Notifications = &NotificationsConfig{}
	}
	if cfg.Notifications.Cap <= 0 {
		cfg.Notifications.Cap = DefaultNotificationCap
	}
	if cfg.Notifications.BackfillLimit <= 0 {
		cfg.Notifications.BackfillLimit = DefaultBackfillLimit
	}
	if strings.TrimSpace(cfg.State.Path) == "" {
		cfg.State.Path = DefaultStatePath
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
