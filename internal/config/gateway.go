package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file omits gateway settings.
const (
	DefaultRateLimit      = 100
	DefaultRateWindow     = time.Hour
	DefaultLockThreshold  = 3
	DefaultLockWindow     = time.Hour
	DefaultLockDuration   = 5 * time.Minute
	DefaultUploadMaxBytes = 10 << 20
	DefaultDevOrigin      = "http://localhost:5173"
	DefaultStorageBucket  = "documents"
)

// DefaultAllowedOrigins lists the production front-end origins.
var DefaultAllowedOrigins = []string{
	"https://bicrea.com",
	"https://www.bicrea.com",
}

// DefaultUploadTypes lists the accepted upload MIME types.
var DefaultUploadTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// OriginsConfig holds the origin allow-list.
type OriginsConfig struct {
	Allowed []string // Production origins.
	Dev     string   // Local development origin, narrower headers.
}

// RateLimitConfig holds the per-IP request ceiling.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// LockoutConfig holds the failed-login lockout policy.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

// UploadConfig holds document upload constraints.
type UploadConfig struct {
	MaxBytes     int64
	AllowedTypes []string
}

// StorageConfig holds blob store connection settings. An empty endpoint
// selects the in-memory store, intended for development and tests only.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use-ssl"`
}

// GatewayConfig aggregates the gateway policy settings.
type GatewayConfig struct {
	Server    ServerConfig
	Origins   OriginsConfig
	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Upload    UploadConfig
	Storage   StorageConfig
}

// duration accepts YAML duration strings ("5m", "1h") or raw nanoseconds.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if errDecode := value.Decode(&raw); errDecode == nil {
		parsed, errParse := time.ParseDuration(strings.TrimSpace(raw))
		if errParse != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, errParse)
		}
		*d = duration(parsed)
		return nil
	}
	var nanos int64
	if errDecode := value.Decode(&nanos); errDecode != nil {
		return errDecode
	}
	*d = duration(nanos)
	return nil
}

// fileGatewayConfig maps the YAML fields for gateway settings.
type fileGatewayConfig struct {
	Server  ServerConfig `yaml:"server"`
	Origins struct {
		Allowed []string `yaml:"allowed"`
		Dev     string   `yaml:"dev"`
	} `yaml:"origins"`
	RateLimit struct {
		Limit  int      `yaml:"limit"`
		Window duration `yaml:"window"`
	} `yaml:"rate-limit"`
	Lockout struct {
		Threshold int      `yaml:"threshold"`
		Window    duration `yaml:"window"`
		Duration  duration `yaml:"duration"`
	} `yaml:"lockout"`
	Upload struct {
		MaxBytes     int64    `yaml:"max-bytes"`
		AllowedTypes []string `yaml:"allowed-types"`
	} `yaml:"upload"`
	Storage StorageConfig `yaml:"storage"`
}

// DefaultGatewayConfig returns the gateway defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Origins: OriginsConfig{
			Allowed: append([]string(nil), DefaultAllowedOrigins...),
			Dev:     DefaultDevOrigin,
		},
		RateLimit: RateLimitConfig{Limit: DefaultRateLimit, Window: DefaultRateWindow},
		Lockout: LockoutConfig{
			Threshold: DefaultLockThreshold,
			Window:    DefaultLockWindow,
			Duration:  DefaultLockDuration,
		},
		Upload: UploadConfig{
			MaxBytes:     DefaultUploadMaxBytes,
			AllowedTypes: append([]string(nil), DefaultUploadTypes...),
		},
		Storage: StorageConfig{Bucket: DefaultStorageBucket},
	}
}

// LoadGatewayConfig loads gateway settings from the YAML config file,
// falling back to defaults for anything unset. A missing file yields
// pure defaults.
func LoadGatewayConfig(configPath string) (GatewayConfig, error) {
	result := DefaultGatewayConfig()

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return result, nil
		}
		return result, fmt.Errorf("read config file: %w", errRead)
	}

	var cfg fileGatewayConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return result, fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if cfg.Server.Port > 0 {
		result.Server.Port = cfg.Server.Port
	}
	if len(cfg.Origins.Allowed) > 0 {
		result.Origins.Allowed = normalizeOrigins(cfg.Origins.Allowed)
	}
	if origin := strings.TrimSpace(cfg.Origins.Dev); origin != "" {
		result.Origins.Dev = strings.TrimRight(origin, "/")
	}
	if cfg.RateLimit.Limit > 0 {
		result.RateLimit.Limit = cfg.RateLimit.Limit
	}
	if cfg.RateLimit.Window > 0 {
		result.RateLimit.Window = time.Duration(cfg.RateLimit.Window)
	}
	if cfg.Lockout.Threshold > 0 {
		result.Lockout.Threshold = cfg.Lockout.Threshold
	}
	if cfg.Lockout.Window > 0 {
		result.Lockout.Window = time.Duration(cfg.Lockout.Window)
	}
	if cfg.Lockout.Duration > 0 {
		result.Lockout.Duration = time.Duration(cfg.Lockout.Duration)
	}
	if cfg.Upload.MaxBytes > 0 {
		result.Upload.MaxBytes = cfg.Upload.MaxBytes
	}
	if len(cfg.Upload.AllowedTypes) > 0 {
		result.Upload.AllowedTypes = cfg.Upload.AllowedTypes
	}
	if endpoint := strings.TrimSpace(cfg.Storage.Endpoint); endpoint != "" {
		result.Storage = cfg.Storage
		result.Storage.Endpoint = endpoint
		if strings.TrimSpace(result.Storage.Bucket) == "" {
			result.Storage.Bucket = DefaultStorageBucket
		}
	}
	return result, nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
