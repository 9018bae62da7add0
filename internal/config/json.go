package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/keyrepo/internal/flagx"
	"github.com/dmitrijs2005/keyrepo/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from "false"; absent or empty values leave the
// current setting untouched.
type JsonConfig struct {
	Backend          string          `json:"backend"`
	StorageNamespace string          `json:"storage_namespace"`
	NamespacePrefix  string          `json:"namespace_prefix"`
	S3Region         string          `json:"s3_region"`
	S3AccessKey      string          `json:"s3_access_key"`
	S3SecretKey      string          `json:"s3_secret_key"`
	S3BaseEndpoint   string          `json:"s3_base_endpoint"`
	S3UsePathStyle   *bool           `json:"s3_use_path_style"`
	DatabaseDSN      string          `json:"database_dsn"`
	RetryNotFound    *bool           `json:"retry_not_found"`
	LogLevel         string          `json:"log_level"`
	LogFormat        string          `json:"log_format"`
	CommandTimeout   *timex.Duration `json:"command_timeout"`
}

// parseJson overlays values from the file named by -c/-config in args.
// Nothing happens when neither flag is present.
func parseJson(config *Config, args []string) error {
	path := flagx.JsonConfigFlags(args, boolFlags...)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.Backend, c.Backend)
	setString(&config.StorageNamespace, c.StorageNamespace)
	setString(&config.NamespacePrefix, c.NamespacePrefix)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	if c.RetryNotFound != nil {
		config.RetryNotFound = *c.RetryNotFound
	}
	if c.CommandTimeout != nil {
		config.CommandTimeout = c.CommandTimeout.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
