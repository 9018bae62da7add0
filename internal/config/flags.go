package config

import (
	"flag"
	"io"
	"time"
)

// boolFlags are the flags registered by parseFlags that take no separate value.
var boolFlags = []string{"path-style", "retry-not-found"}

// parseFlags overlays command-line flags onto config and returns the
// positional arguments that follow them (the command and its operands).
//
// Supported flags:
//
//	-c, -config string   JSON config file (read by parseJson, accepted here)
//	-s string            storage backend: s3, postgres, memory
//	-b string            storage namespace (bucket)
//	-p string            namespace prefix
//	-g string            S3 region
//	-u string            S3 access key
//	-w string            S3 secret key
//	-e string            S3 base endpoint (e.g. "http://127.0.0.1:9000")
//	-path-style          address S3 buckets path-style
//	-d string            PostgreSQL DSN
//	-retry-not-found     retry downloads of missing objects (default true)
//	-l string            log level
//	-f string            log format: json or text
//	-t int               command timeout, minutes (0 disables)
func parseFlags(config *Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("keyrepo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var jsonPath string
	fs.StringVar(&jsonPath, "c", "", "path to config file (short)")
	fs.StringVar(&jsonPath, "config", "", "path to config file")

	fs.StringVar(&config.Backend, "s", config.Backend, "storage backend")
	fs.StringVar(&config.StorageNamespace, "b", config.StorageNamespace, "storage namespace (bucket)")
	fs.StringVar(&config.NamespacePrefix, "p", config.NamespacePrefix, "namespace prefix")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "w", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.BoolVar(&config.S3UsePathStyle, "path-style", config.S3UsePathStyle, "path-style S3 addressing")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.RetryNotFound, "retry-not-found", config.RetryNotFound, "retry missing objects")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")

	timeout := fs.Int("t", int(config.CommandTimeout.Minutes()), "command timeout (in minutes)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Only an explicit -t overrides, so sub-minute JSON values survive.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.CommandTimeout = time.Duration(*timeout) * time.Minute
		}
	})
	return fs.Args(), nil
}
