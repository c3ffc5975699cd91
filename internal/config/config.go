package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the bridge configuration.
type Config struct {
	Host         string
	Port         string
	SQLiteDBPath string
	LogLevel     string
	LogFormat    string

	// JWTSecret protects the /v1 API. Empty disables authentication.
	JWTSecret               string
	JWTAccessTokenExpirySec int

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	SpotifyDeviceName   string
	SpotifyTimeout      time.Duration
	SnapshotCacheTTL    time.Duration

	ReconcileLockTimeout time.Duration

	MopidyRPCURL  string
	MopidyTimeout time.Duration

	// RedisAddr enables event fan-out over Redis pub/sub when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	AuditRetentionDays    int
	AuditPruneSchedule    string
	DeviceResolveSchedule string

	CORSAllowOrigin string
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// fileValues are the keys an optional CONFIG_FILE may set. Environment
// variables take precedence.
type fileValues map[string]string

// Load reads configuration from an optional .env file, an optional YAML
// file named by CONFIG_FILE, and environment variables, in increasing order
// of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return fromSource(file.lookup)
}

func loadFile(path string) (fileValues, error) {
	if path == "" {
		return fileValues{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(fileValues, len(raw))
	for key, val := range raw {
		if val == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(val)
	}
	return values, nil
}

func (f fileValues) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return f[key]
}

func fromSource(get func(string) string) (Config, error) {
	cfg := Config{
		Host:                    envString(get, "HOST", "0.0.0.0"),
		Port:                    envString(get, "PORT", "6681"),
		SQLiteDBPath:            envString(get, "SQLITE_DB_PATH", "./data/connect-bridge.db"),
		LogLevel:                envString(get, "LOG_LEVEL", "info"),
		LogFormat:               envString(get, "LOG_FORMAT", "text"),
		JWTSecret:               envString(get, "JWT_SECRET", ""),
		JWTAccessTokenExpirySec: envInt(get, "JWT_ACCESS_TOKEN_EXPIRY", 3600),
		SpotifyClientID:         envString(get, "SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret:     envString(get, "SPOTIFY_CLIENT_SECRET", ""),
		SpotifyRefreshToken:     envString(get, "SPOTIFY_REFRESH_TOKEN", ""),
		SpotifyDeviceName:       envString(get, "SPOTIFY_DEVICE_NAME", ""),
		SpotifyTimeout:          envDurationMs(get, "SPOTIFY_TIMEOUT_MS", 10000),
		SnapshotCacheTTL:        envDurationMs(get, "SNAPSHOT_CACHE_TTL_MS", 2000),
		ReconcileLockTimeout:    envDurationMs(get, "RECONCILE_LOCK_TIMEOUT_MS", 10000),
		MopidyRPCURL:            envString(get, "MOPIDY_RPC_URL", "http://localhost:6680/mopidy/rpc"),
		MopidyTimeout:           envDurationMs(get, "MOPIDY_TIMEOUT_MS", 5000),
		RedisAddr:               envString(get, "REDIS_ADDR", ""),
		RedisPassword:           envString(get, "REDIS_PASSWORD", ""),
		RedisDB:                 envInt(get, "REDIS_DB", 0),
		RedisChannel:            envString(get, "REDIS_CHANNEL", "connect-bridge:events"),
		AuditRetentionDays:      envInt(get, "AUDIT_RETENTION_DAYS", 30),
		AuditPruneSchedule:      envString(get, "AUDIT_PRUNE_SCHEDULE", "@daily"),
		DeviceResolveSchedule:   envString(get, "DEVICE_RESOLVE_SCHEDULE", "@every 1m"),
		CORSAllowOrigin:         envString(get, "CORS_ALLOW_ORIGIN", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or invalid setting.
func (c Config) Validate() error {
	var errs []error
	required := map[string]string{
		"SPOTIFY_CLIENT_ID":     c.SpotifyClientID,
		"SPOTIFY_CLIENT_SECRET": c.SpotifyClientSecret,
		"SPOTIFY_REFRESH_TOKEN": c.SpotifyRefreshToken,
		"SPOTIFY_DEVICE_NAME":   c.SpotifyDeviceName,
	}
	for _, key := range []string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REFRESH_TOKEN", "SPOTIFY_DEVICE_NAME"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if c.JWTSecret != "" && len(strings.TrimSpace(c.JWTSecret)) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.JWTAccessTokenExpirySec <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TOKEN_EXPIRY must be positive"))
	}
	if c.ReconcileLockTimeout <= 0 {
		errs = append(errs, errors.New("RECONCILE_LOCK_TIMEOUT_MS must be positive"))
	}
	if c.AuditRetentionDays < 0 {
		errs = append(errs, errors.New("AUDIT_RETENTION_DAYS must not be negative"))
	}
	return errors.Join(errs...)
}

func envString(get func(string) string, key, fallback string) string {
	val := get(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(get func(string) string, key string, fallback int) int {
	val := get(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurationMs(get func(string) string, key string, fallbackMs int) time.Duration {
	return time.Duration(envInt(get, key, fallbackMs)) * time.Millisecond
}
