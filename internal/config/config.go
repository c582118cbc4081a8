// Package config loads and validates server config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger backends
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// MinSecretLen is the minimum length of a token signing secret in bytes.
const MinSecretLen = 32

// Argon2 cost limits. Values are narrowed to uint32 when building hash params.
const (
	MaxArgon2MemoryKB = 4 * 1024 * 1024
	MaxArgon2Time     = 64
)

// Config holds server configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// LogLevel is debug|info|warn|error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// DatabasePath is the sqlite file holding users (and the ledger for the sqlite backend).
	DatabasePath string `mapstructure:"DATABASE_PATH"`
	// LedgerBackend selects where chain nodes live: sqlite or bolt.
	LedgerBackend string `mapstructure:"LEDGER_BACKEND"`
	// BoltPath is the bbolt file used when LedgerBackend is bolt.
	BoltPath string `mapstructure:"BOLT_PATH"`

	JWTAccessSecret  string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessDuration is the access token lifetime (e.g. "15m").
	JWTAccessDuration string `mapstructure:"JWT_ACCESS_DURATION"`
	// JWTRefreshDuration is the refresh token lifetime (e.g. "7d").
	JWTRefreshDuration string `mapstructure:"JWT_REFRESH_DURATION"`
	JWTIssuer          string `mapstructure:"JWT_ISSUER"`
	JWTAudience        string `mapstructure:"JWT_AUDIENCE"`

	RevokeQueueSize int    `mapstructure:"REVOKE_QUEUE_SIZE"`
	RevokeWorkers   int    `mapstructure:"REVOKE_WORKERS"`
	RevokeTimeout   string `mapstructure:"REVOKE_TIMEOUT"`
	// SweepInterval is how often expired chain nodes are deleted; "0" disables the sweep.
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`

	Argon2MemoryKB int `mapstructure:"ARGON2_MEMORY_KB"`
	Argon2Time     int `mapstructure:"ARGON2_TIME"`
	Argon2Threads  int `mapstructure:"ARGON2_THREADS"`

	// Разобранные длительности, заполняются в Load
	AccessTTL        time.Duration `mapstructure:"-"`
	RefreshTTL       time.Duration `mapstructure:"-"`
	RevokeTimeoutDur time.Duration `mapstructure:"-"`
	SweepIntervalDur time.Duration `mapstructure:"-"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
// Env vars override .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is ignored,
// any other read or parse error is returned.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_PATH", "gophauth.db")
	v.SetDefault("LEDGER_BACKEND", BackendSQLite)
	v.SetDefault("BOLT_PATH", "ledger.bolt")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_DURATION", "15m")
	v.SetDefault("JWT_REFRESH_DURATION", "7d")
	v.SetDefault("JWT_ISSUER", "gophauth")
	v.SetDefault("JWT_AUDIENCE", "gophauth-api")
	v.SetDefault("REVOKE_QUEUE_SIZE", 1024)
	v.SetDefault("REVOKE_WORKERS", 2)
	v.SetDefault("REVOKE_TIMEOUT", "5s")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("ARGON2_MEMORY_KB", 64*1024)
	v.SetDefault("ARGON2_TIME", 1)
	v.SetDefault("ARGON2_THREADS", 4)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}

	switch c.LedgerBackend {
	case BackendSQLite:
	case BackendBolt:
		if c.BoltPath == "" {
			return errors.New("config: BOLT_PATH must be set for the bolt backend")
		}
	default:
		return fmt.Errorf("config: unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	if c.DatabasePath == "" {
		return errors.New("config: DATABASE_PATH must be set")
	}

	if len(c.JWTAccessSecret) < MinSecretLen {
		return fmt.Errorf("config: JWT_ACCESS_SECRET must be at least %d bytes", MinSecretLen)
	}
	if len(c.JWTRefreshSecret) < MinSecretLen {
		return fmt.Errorf("config: JWT_REFRESH_SECRET must be at least %d bytes", MinSecretLen)
	}

	var err error
	if c.AccessTTL, err = parsePositive("JWT_ACCESS_DURATION", c.JWTAccessDuration); err != nil {
		return err
	}
	if c.RefreshTTL, err = parsePositive("JWT_REFRESH_DURATION", c.JWTRefreshDuration); err != nil {
		return err
	}
	if c.AccessTTL >= c.RefreshTTL {
		return errors.New("config: JWT_ACCESS_DURATION must be shorter than JWT_REFRESH_DURATION")
	}

	if c.RevokeTimeoutDur, err = parsePositive("REVOKE_TIMEOUT", c.RevokeTimeout); err != nil {
		return err
	}
	if c.SweepIntervalDur, err = ParseDuration(c.SweepInterval); err != nil || c.SweepIntervalDur < 0 {
		return fmt.Errorf("config: invalid SWEEP_INTERVAL %q", c.SweepInterval)
	}

	if c.RevokeQueueSize <= 0 || c.RevokeWorkers <= 0 {
		return errors.New("config: REVOKE_QUEUE_SIZE and REVOKE_WORKERS must be positive")
	}

	if c.Argon2MemoryKB <= 0 || c.Argon2MemoryKB > MaxArgon2MemoryKB {
		return fmt.Errorf("config: ARGON2_MEMORY_KB must be between 1 and %d", MaxArgon2MemoryKB)
	}
	if c.Argon2Time <= 0 || c.Argon2Time > MaxArgon2Time {
		return fmt.Errorf("config: ARGON2_TIME must be between 1 and %d", MaxArgon2Time)
	}
	if c.Argon2Threads <= 0 || c.Argon2Threads > 255 {
		return errors.New("config: ARGON2_THREADS must be between 1 and 255")
	}

	return nil
}

func parsePositive(key, value string) (time.Duration, error) {
	d, err := ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, value)
	}
	return d, nil
}

// ParseDuration parses Go duration syntax plus a whole-day suffix ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		const day = int64(24 * time.Hour)
		if n > math.MaxInt64/day || n < math.MinInt64/day {
			return 0, fmt.Errorf("duration %q out of range", s)
		}
		return time.Duration(n * day), nil
	}
	return time.ParseDuration(s)
}
