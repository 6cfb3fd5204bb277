package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "COMPANION_"

type Config struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	DBPath         string        `yaml:"db_path" env:"DB_PATH"`
	MigrationsDir  string        `yaml:"migrations_dir" env:"MIGRATIONS_DIR"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	FetchAttempts  int           `yaml:"fetch_attempts" env:"FETCH_ATTEMPTS"`
	FanOut         int           `yaml:"fan_out" env:"FAN_OUT"`
	DraftTTL       time.Duration `yaml:"draft_ttl" env:"DRAFT_TTL"`
	SealKey        string        `yaml:"seal_key" env:"SEAL_KEY"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`
	DeviceLocale   string        `yaml:"device_locale" env:"DEVICE_LOCALE"`
	LegacySnapshot string        `yaml:"legacy_snapshot" env:"LEGACY_SNAPSHOT"`
}

// MaxRequestTimeout caps request_timeout; a remote call never waits longer.
const MaxRequestTimeout = 10 * time.Second

func Default() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		DBPath:         "companion.db",
		RequestTimeout: MaxRequestTimeout,
		FetchAttempts:  2,
		FanOut:         4,
		DraftTTL:       30 * 24 * time.Hour,
		LogLevel:       "info",
	}
}

// Load applies defaults, then the YAML file at path (skipped when path is
// empty or the file does not exist), then COMPANION_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required")
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout > MaxRequestTimeout {
		return fmt.Errorf("request_timeout must be in (0, %s]", MaxRequestTimeout)
	}
	if c.FetchAttempts < 1 {
		return errors.New("fetch_attempts must be at least 1")
	}
	if c.DraftTTL < 0 {
		return errors.New("draft_ttl must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// NewLogger builds a production zap logger at level. Output goes to stderr so
// command output on stdout stays machine readable.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
