package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/feedcaster/feedcaster/internal/ratelimit"
	"github.com/feedcaster/feedcaster/internal/relevance"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvJWTSecret      = "JWT_SECRET"
	EnvJWTExpiry      = "JWT_EXPIRY"
	EnvSocialAPIToken = "SOCIAL_API_TOKEN"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// Duration decodes YAML duration strings like "30m" as well as integer
// nanosecond values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if errDecode := value.Decode(&raw); errDecode == nil {
		parsed, errParse := time.ParseDuration(strings.TrimSpace(raw))
		if errParse != nil {
			return fmt.Errorf("parse duration %q: %w", raw, errParse)
		}
		*d = Duration(parsed)
		return nil
	}
	var nanos int64
	if errDecode := value.Decode(&nanos); errDecode != nil {
		return errDecode
	}
	*d = Duration(nanos)
	return nil
}

// JWTConfig holds resolved JWT secret and expiry settings.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// SocialConfig holds the social media API client settings.
type SocialConfig struct {
	BaseURL string `yaml:"base-url"`
	Token   string `yaml:"token"`
}

// ProtectionConfig is the YAML shape of the DoS protection options.
type ProtectionConfig struct {
	PerSecond              int      `yaml:"per-second"`
	PerMinute              int      `yaml:"per-minute"`
	PerHour                int      `yaml:"per-hour"`
	Burst                  int      `yaml:"burst"`
	BurstDisabled          bool     `yaml:"burst-disabled"`
	MaxConsecutiveFailures int      `yaml:"max-consecutive-failures"`
	FailuresPerMinute      int      `yaml:"failures-per-minute"`
	BanDuration            Duration `yaml:"ban-duration"`
	SuspiciousThreshold    float64  `yaml:"suspicious-threshold"`
	SweepInterval          Duration `yaml:"sweep-interval"`
	Retention              Duration `yaml:"retention"`
	RefillInterval         Duration `yaml:"refill-interval"`
}

// Options converts the YAML shape into ratelimit.Options.
func (p ProtectionConfig) Options() ratelimit.Options {
	return ratelimit.Options{
		PerSecond:              p.PerSecond,
		PerMinute:              p.PerMinute,
		PerHour:                p.PerHour,
		Burst:                  p.Burst,
		BurstDisabled:          p.BurstDisabled,
		MaxConsecutiveFailures: p.MaxConsecutiveFailures,
		FailuresPerMinute:      p.FailuresPerMinute,
		BanDuration:            time.Duration(p.BanDuration),
		SuspiciousThreshold:    p.SuspiciousThreshold,
		SweepInterval:          time.Duration(p.SweepInterval),
		Retention:              time.Duration(p.Retention),
		RefillInterval:         time.Duration(p.RefillInterval),
	}
}

// FileConfig is the full YAML config file shape.
type FileConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	JWT struct {
		Secret string   `yaml:"secret"`
		Expiry Duration `yaml:"expiry"`
	} `yaml:"jwt"`

	Social SocialConfig `yaml:"social"`

	Feeds []string `yaml:"feeds"`

	Keywords           []relevance.Keyword `yaml:"keywords"`
	RelevanceThreshold float64             `yaml:"relevance-threshold"`

	Protection ProtectionConfig `yaml:"protection"`
}

// LoadFile reads and parses the YAML config file.
func LoadFile(configPath string) (FileConfig, error) {
	var cfg FileConfig
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return cfg, fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	if token := strings.TrimSpace(os.Getenv(EnvSocialAPIToken)); token != "" {
		cfg.Social.Token = token
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	cfg, errLoad := LoadFile(configPath)
	if errLoad != nil {
		return "", errLoad
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	result := JWTConfig{Expiry: defaultJWTExpiry}

	if cfg, errLoad := LoadFile(configPath); errLoad == nil {
		result.Secret = cfg.JWT.Secret
		result.Expiry = time.Duration(cfg.JWT.Expiry)
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}
