// Package config holds the settings of the dev story API.
package config

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/flagx"
	"github.com/spf13/pflag"
)

const EnvPrefix = "STORYQUEUE_DEVAPI"

type Config struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	SecretKey  string        `mapstructure:"secret_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`

	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	PushTimeout     time.Duration `mapstructure:"push_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8081"
	c.SecretKey = "storyqueue-dev-secret"
	c.TokenTTL = 24 * time.Hour
	c.RateLimit = 50
	c.RateBurst = 100
	c.PushTimeout = 5 * time.Second
	c.ShutdownTimeout = 5 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP("listen-addr", "l", d.ListenAddr, "address the API listens on")
	fs.StringP("secret-key", "k", d.SecretKey, "HS256 signing key for bearer tokens")
	fs.Duration("token-ttl", d.TokenTTL, "lifetime of issued tokens")
	fs.Float64("rate-limit", d.RateLimit, "requests per second, 0 disables limiting")
	fs.Int("rate-burst", d.RateBurst, "burst size of the rate limiter")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "text, json or zerolog")
}

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
	if cfg.SecretKey == "" {
		return nil, errors.New("secret_key must not be empty")
	}
	return cfg, nil
}
