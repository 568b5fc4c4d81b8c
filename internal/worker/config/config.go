// Package config holds the settings of the worker process.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/flagx"
	"github.com/dmitrijs2005/storyqueue/internal/worker/cache"
	"github.com/spf13/pflag"
)

const EnvPrefix = "STORYQUEUE_WORKER"

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr"`
	OriginURL     string        `mapstructure:"origin_url"`
	OriginTimeout time.Duration `mapstructure:"origin_timeout"`
	ManifestPath  string        `mapstructure:"manifest_path"`

	// Permission is the notification permission the user granted:
	// granted, denied or default.
	Permission string `mapstructure:"notification_permission"`

	CacheBackend string        `mapstructure:"cache_backend"`
	CachePath    string        `mapstructure:"cache_path"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Region    string `mapstructure:"s3_region"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Prefix    string `mapstructure:"s3_prefix"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`

	InstallConcurrency int           `mapstructure:"install_concurrency"`
	FetchRetries       uint64        `mapstructure:"fetch_retries"`
	// GenerationCheck is how often the worker looks for a newer worker
	// having replaced its cache generation; zero disables the check.
	GenerationCheck time.Duration `mapstructure:"generation_check"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.OriginURL = "http://127.0.0.1:9000"
	c.OriginTimeout = 10 * time.Second
	c.Permission = "granted"
	c.CacheBackend = BackendSQLite
	c.CachePath = "~/.storyqueue/worker-cache.db"
	c.BusyTimeout = 5 * time.Second
	c.S3Region = "us-east-1"
	c.S3Prefix = "worker-cache"
	c.InstallConcurrency = 4
	c.FetchRetries = 2
	c.GenerationCheck = 30 * time.Second
	c.ShutdownTimeout = 5 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

func (c *Config) S3() cache.S3Config {
	return cache.S3Config{
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		Bucket:    c.S3Bucket,
		Prefix:    c.S3Prefix,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	}
}

func (c *Config) Validate() error {
	switch c.CacheBackend {
	case BackendMemory, BackendSQLite:
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("cache backend s3 needs s3_bucket")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
	if c.OriginURL == "" {
		return fmt.Errorf("origin_url is required")
	}
	return nil
}

func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP("listen-addr", "l", d.ListenAddr, "address the worker listens on")
	fs.StringP("origin-url", "o", d.OriginURL, "static asset origin")
	fs.Duration("origin-timeout", d.OriginTimeout, "timeout for origin requests")
	fs.StringP("manifest-path", "m", d.ManifestPath, "precache manifest (YAML); built-in default when empty")
	fs.String("notification-permission", d.Permission, "granted, denied or default")
	fs.String("cache-backend", d.CacheBackend, "memory, sqlite or s3")
	fs.String("cache-path", d.CachePath, "sqlite cache database")
	fs.String("s3-endpoint", d.S3Endpoint, "S3 endpoint, e.g. a MinIO URL")
	fs.String("s3-bucket", d.S3Bucket, "S3 bucket for the cache backend")
	fs.Duration("generation-check", d.GenerationCheck, "interval for detecting a newer worker; 0 disables")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "text, json or zerolog")
}

// LoadConfig layers defaults, the config file, .env/environment and flags.
func LoadConfig(configFile string, fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	err := flagx.Load(flagx.Source{
		EnvPrefix:  EnvPrefix,
		ConfigFile: configFile,
		EnvFiles:   []string{".env"},
		Flags:      fs,
	}, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
