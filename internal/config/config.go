// Package config handles configuration for the keyrepo command, including
// defaults, JSON overlay, command-line flags and validation.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/keyrepo/internal/common"
)

// Storage backends.
const (
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds runtime settings.
//
// Fields:
//   - Backend: object store implementation, one of s3, postgres, memory.
//   - StorageNamespace: bucket (s3) or logical bucket (postgres). Required.
//   - NamespacePrefix: optional key prefix scoping the documents, e.g. "keys/".
//   - S3Region / S3AccessKey / S3SecretKey / S3BaseEndpoint / S3UsePathStyle:
//     S3 client settings. An empty access key selects the default AWS chain.
//   - DatabaseDSN: PostgreSQL DSN (pgx) for the postgres backend.
//   - RetryNotFound: when false, missing objects fail fast instead of being retried.
//   - LogLevel / LogFormat: slog level (debug, info, warn, error) and handler (json, text).
//   - CommandTimeout: upper bound for one command, 0 disables it.
type Config struct {
	Backend          string
	StorageNamespace string
	NamespacePrefix  string
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	S3BaseEndpoint   string
	S3UsePathStyle   bool
	DatabaseDSN      string
	RetryNotFound    bool
	LogLevel         string
	LogFormat        string
	CommandTimeout   time.Duration
}

// LoadDefaults populates Config with development defaults. StorageNamespace
// is deliberately left empty.
func (c *Config) LoadDefaults() {
	c.Backend = BackendS3
	c.S3Region = "us-east-1"
	c.RetryNotFound = true
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.CommandTimeout = 5 * time.Minute
}

// Validate reports the first problem that makes the configuration unusable.
func (c *Config) Validate() error {
	if c.StorageNamespace == "" {
		return common.ErrorMissingNamespace
	}
	switch c.Backend {
	case BackendS3, BackendMemory:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("postgres backend: database DSN is required")
		}
	default:
		return fmt.Errorf("%w: %q", common.ErrorUnknownBackend, c.Backend)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("command timeout must not be negative")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file (-c/-config) and finally from command-line
// flags. It returns the validated config and the remaining positional
// arguments.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, nil, err
	}

	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}
