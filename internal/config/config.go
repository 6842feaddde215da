// Package config provides configuration loading and management for the ingestion service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// CodecPerenual is the codec for Perenual-style provider APIs
	CodecPerenual = "perenual"

	// CodecTrefle is the codec for Trefle-style provider APIs
	CodecTrefle = "trefle"
)

const (
	// StorageTypeFile stores checkpoints and drafts on the local filesystem
	StorageTypeFile = "file"

	// StorageTypeDatabase stores checkpoints and drafts in PostgreSQL
	StorageTypeDatabase = "database"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Providers lists the upstream botanical data providers to ingest from
	Providers []ProviderConfig `yaml:"providers"`

	// Storage selects the backing store for checkpoints and drafts
	Storage *StorageConfig `yaml:"storage,omitempty"`

	// Database holds connection settings, required when storage type is database
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// Alerting configures the alert dispatcher and notification channels
	Alerting *AlertingConfig `yaml:"alerting,omitempty"`
}

// ProviderConfig defines a single upstream provider
type ProviderConfig struct {
	// Name is the identifier for this provider
	Name string `yaml:"name"`

	// Codec selects the response decoder (perenual or trefle)
	Codec string `yaml:"codec"`

	// Endpoint is the base API URL without a trailing path
	Endpoint string `yaml:"endpoint"`

	// APIKeyFile is the path to a file containing the provider API key.
	// This is the recommended approach for production deployments.
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`
	Retry     *RetryConfig     `yaml:"retry,omitempty"`
	Breaker   *BreakerConfig   `yaml:"breaker,omitempty"`
	Sync      *SyncConfig      `yaml:"sync,omitempty"`
}

// RateLimitConfig bounds outbound request rate for a provider
type RateLimitConfig struct {
	// PerMinute is the request quota per fixed one-minute window
	PerMinute int `yaml:"perMinute,omitempty"`

	// PerDay is the request quota per calendar day (UTC)
	PerDay int `yaml:"perDay,omitempty"`
}

// RetryConfig bounds retry behavior for a provider
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// InitialDelay is the base backoff delay (e.g. "500ms")
	InitialDelay string `yaml:"initialDelay,omitempty"`

	// MaxDelay caps the backoff delay (e.g. "30s")
	MaxDelay string `yaml:"maxDelay,omitempty"`
}

// BreakerConfig tunes the circuit breaker for a provider
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit
	FailureThreshold int `yaml:"failureThreshold,omitempty"`

	// Cooldown is how long the circuit stays open before a probe (e.g. "60s")
	Cooldown string `yaml:"cooldown,omitempty"`
}

// SyncConfig tunes the progressive sync engine for a provider
type SyncConfig struct {
	// PageSize is the number of items requested per page
	PageSize int `yaml:"pageSize,omitempty"`

	// PagesPerRun bounds how many pages a single run may consume
	PagesPerRun int `yaml:"pagesPerRun,omitempty"`

	// PageDelay is the politeness delay between pages (e.g. "2s")
	PageDelay string `yaml:"pageDelay,omitempty"`

	// EnrichBatch bounds how many records an enrichment run revisits
	EnrichBatch int `yaml:"enrichBatch,omitempty"`

	// Staleness is the age after which a record needs re-enrichment (e.g. "720h")
	Staleness string `yaml:"staleness,omitempty"`
}

// StorageConfig selects the backing store
type StorageConfig struct {
	// Type is file or database
	Type string `yaml:"type"`

	// DataDir is the directory for file-backed state (checkpoints, drafts)
	DataDir string `yaml:"dataDir,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`
}

// AlertingConfig configures the alert dispatcher
type AlertingConfig struct {
	// Cooldown is the minimum time between repeated non-critical alerts
	// for the same provider (e.g. "5m")
	Cooldown string `yaml:"cooldown,omitempty"`

	// EscalationTrips is the lifetime trip count at which a recovery
	// alert escalates from info to warning
	EscalationTrips int `yaml:"escalationTrips,omitempty"`

	// HistorySize bounds the in-memory alert history across all providers
	HistorySize int `yaml:"historySize,omitempty"`

	// CheckInterval is how often the watcher polls circuit and health state (e.g. "30s")
	CheckInterval string `yaml:"checkInterval,omitempty"`

	Email   *EmailConfig   `yaml:"email,omitempty"`
	Webhook *WebhookConfig `yaml:"webhook,omitempty"`
}

// EmailConfig defines SMTP delivery settings for alerts
type EmailConfig struct {
	Host string   `yaml:"host"`
	Port int      `yaml:"port"`
	From string   `yaml:"from"`
	To   []string `yaml:"to"`
}

// WebhookConfig defines webhook delivery settings for alerts
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// GetAPIKey returns the provider API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. Read from the FLORASYNC_<NAME>_API_KEY environment variable
//
// The key from file will have leading/trailing whitespace trimmed.
// An empty result means the provider is not configured; callers must
// treat it as such rather than attempting network I/O.
func (p *ProviderConfig) GetAPIKey() (string, error) {
	if p.APIKeyFile != "" {
		cleanPath := filepath.Clean(p.APIKeyFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", p.APIKeyFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	envName := fmt.Sprintf("FLORASYNC_%s_API_KEY", strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")))
	return os.Getenv(envName), nil
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from FLORASYNC_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv("FLORASYNC_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or FLORASYNC_DATABASE_PASSWORD environment variable",
	)
}

// ConnString builds a PostgreSQL connection string for pgx
func (d *DatabaseConfig) ConnString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, password, d.Database, sslMode,
	), nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStorageType returns the configured storage type, defaulting to file
func (c *Config) GetStorageType() string {
	if c.Storage == nil || c.Storage.Type == "" {
		return StorageTypeFile
	}
	return c.Storage.Type
}

// GetDataDir returns the data directory for file-backed storage
func (c *Config) GetDataDir() string {
	if c.Storage == nil || c.Storage.DataDir == "" {
		return "./data"
	}
	return c.Storage.DataDir
}

// GetProvider returns the configuration for the named provider, or nil
func (c *Config) GetProvider(name string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i]
		}
	}
	return nil
}

// Validate performs validation on the configuration. LoadConfig calls
// this automatically; it is exported for callers that build or embed
// configurations themselves.
func (c *Config) Validate() error {
	return c.validate()
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	providerNames := make(map[string]bool)
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			return fmt.Errorf("provider[%d]: name is required", i)
		}

		if providerNames[p.Name] {
			return fmt.Errorf("provider[%d]: duplicate provider name '%s'", i, p.Name)
		}
		providerNames[p.Name] = true

		if err := validateProviderConfig(p, i); err != nil {
			return err
		}
	}

	storageType := c.GetStorageType()
	if storageType != StorageTypeFile && storageType != StorageTypeDatabase {
		return fmt.Errorf("storage.type must be %s or %s, got %s",
			StorageTypeFile, StorageTypeDatabase, storageType)
	}

	if storageType == StorageTypeDatabase && c.Database == nil {
		return fmt.Errorf("database configuration is required when storage type is database")
	}

	return validateAlerting(c.Alerting)
}

// validateProviderConfig validates a single provider configuration
func validateProviderConfig(p *ProviderConfig, index int) error {
	prefix := fmt.Sprintf("provider[%d] (%s)", index, p.Name)

	if p.Codec != CodecPerenual && p.Codec != CodecTrefle {
		return fmt.Errorf("%s: codec must be %s or %s, got %q", prefix, CodecPerenual, CodecTrefle, p.Codec)
	}

	if p.Endpoint == "" {
		return fmt.Errorf("%s: endpoint is required", prefix)
	}

	durations := make(map[string]string)
	if p.Retry != nil {
		durations["retry.initialDelay"] = p.Retry.InitialDelay
		durations["retry.maxDelay"] = p.Retry.MaxDelay
	}
	if p.Breaker != nil {
		durations["breaker.cooldown"] = p.Breaker.Cooldown
	}
	if p.Sync != nil {
		durations["sync.pageDelay"] = p.Sync.PageDelay
		durations["sync.staleness"] = p.Sync.Staleness
	}

	for field, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %s must be a valid duration (e.g. '30s', '5m'): %w", prefix, field, err)
		}
	}

	return nil
}

// validateAlerting validates the alerting configuration
func validateAlerting(a *AlertingConfig) error {
	if a == nil {
		return nil
	}

	for field, value := range map[string]string{
		"alerting.cooldown":      a.Cooldown,
		"alerting.checkInterval": a.CheckInterval,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", field, err)
		}
	}

	if a.Email != nil {
		if a.Email.Host == "" || a.Email.From == "" || len(a.Email.To) == 0 {
			return fmt.Errorf("alerting.email requires host, from, and at least one recipient")
		}
	}

	if a.Webhook != nil && a.Webhook.URL == "" {
		return fmt.Errorf("alerting.webhook.url is required when webhook is configured")
	}

	return nil
}
