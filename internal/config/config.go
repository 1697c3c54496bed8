// Package config centralises configuration parsing for the dashboard API.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar points at an optional YAML config file.
const PathEnvVar = "CONFIG_PATH"

// DotEnvFiles are loaded, in order, before the environment is read. Existing
// variables are never overridden.
var DotEnvFiles = []string{".env.local", ".env"}

// MaxSyncDays bounds the backfill window; the vendor's weekly summary only covers seven days.
const MaxSyncDays = 7

// Config captures runtime configuration values for the dashboard API.
type Config struct {
	HTTPAddress string `koanf:"http_address"`
	PostgresURL string `koanf:"postgres_url"`

	FiEmail         string        `koanf:"fi_email"`
	FiPassword      string        `koanf:"fi_password"`
	FiBaseURL       string        `koanf:"fi_base_url"`
	FiPetName       string        `koanf:"fi_pet_name"`
	FiPetID         string        `koanf:"fi_pet_id"`
	FiSessionCookie string        `koanf:"fi_session_cookie"`
	FiSyncDays      int           `koanf:"fi_sync_days"`
	VendorTimeout   time.Duration `koanf:"vendor_timeout"`
	ProbeTimeout    time.Duration `koanf:"probe_timeout"`

	JWTSecret  string `koanf:"jwt_secret"`
	JWTIssuer  string `koanf:"jwt_issuer"`
	CORSOrigin string `koanf:"cors_origin"`

	SyncRateLimit  int           `koanf:"sync_rate_limit"`
	SyncRateWindow time.Duration `koanf:"sync_rate_window"`

	StorageEndpoint     string        `koanf:"storage_endpoint"`
	StorageRegion       string        `koanf:"storage_region"`
	StorageBucket       string        `koanf:"storage_bucket"`
	StorageAccessKey    string        `koanf:"storage_access_key"`
	StorageSecretKey    string        `koanf:"storage_secret_key"`
	StoragePublicURL    string        `koanf:"storage_public_url"`
	StorageUsePathStyle bool          `koanf:"storage_use_path_style"`
	StoragePresignTTL   time.Duration `koanf:"storage_presign_ttl"`

	KafkaBrokers    []string `koanf:"kafka_brokers"`
	SyncEventsTopic string   `koanf:"sync_events_topic"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaults() Config {
	return Config{
		HTTPAddress:         ":8080",
		FiBaseURL:           "https://api.tryfi.com",
		FiPetName:           "Bailey",
		FiSessionCookie:     "sessionId",
		FiSyncDays:          MaxSyncDays,
		VendorTimeout:       2 * time.Minute,
		ProbeTimeout:        5 * time.Second,
		JWTIssuer:           "bailey-dashboard",
		CORSOrigin:          "http://localhost:3000",
		SyncRateLimit:       6,
		SyncRateWindow:      time.Minute,
		StorageRegion:       "us-east-1",
		StorageBucket:       "bailey-photos",
		StorageUsePathStyle: true,
		StoragePresignTTL:   15 * time.Minute,
		KafkaBrokers:        []string{},
		SyncEventsTopic:     "bailey.sync.completed",
		LogLevel:            "info",
		LogFormat:           "json",
	}
}

// Load layers defaults, an optional YAML file and the process environment
// (highest priority). FI_EMAIL becomes fi_email and so on.
func Load() (Config, error) {
	loadDotEnv()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(PathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = splitAndTrim(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv() {
	for _, name := range DotEnvFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		_ = godotenv.Load(name)
	}
}

// Validate rejects values the service cannot run with. Vendor credentials
// are deliberately not checked here: their absence is reported per sync.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddress) == "" {
		errs = append(errs, errors.New("http_address is required"))
	}
	if c.FiSyncDays < 1 || c.FiSyncDays > MaxSyncDays {
		errs = append(errs, fmt.Errorf("fi_sync_days must be between 1 and %d", MaxSyncDays))
	}
	if c.VendorTimeout <= 0 {
		errs = append(errs, errors.New("vendor_timeout must be > 0"))
	}
	if c.SyncRateLimit < 0 {
		errs = append(errs, errors.New("sync_rate_limit must be >= 0"))
	}
	return errors.Join(errs...)
}

// VendorConfigured reports whether both Fi credentials are present.
func (c Config) VendorConfigured() bool {
	return strings.TrimSpace(c.FiEmail) != "" && strings.TrimSpace(c.FiPassword) != ""
}

// StorageConfigured reports whether photo uploads can be signed.
func (c Config) StorageConfigured() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

func splitAndTrim(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
