package config

import (
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/flagx"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by storyqueue.
const EnvPrefix = "STORYQUEUE"

// Config holds runtime settings for the storyqueue client.
type Config struct {
	APIURL    string `mapstructure:"api_url"`
	WorkerURL string `mapstructure:"worker_url"`
	// PingPath is checked to decide online/offline.
	PingPath string `mapstructure:"ping_path"`

	DBPath      string        `mapstructure:"db_path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	OnlineCheckInterval time.Duration `mapstructure:"online_check_interval"`
	CheckTimeout        time.Duration `mapstructure:"check_timeout"`
	MaxBackoff          time.Duration `mapstructure:"max_backoff"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIURL = "http://127.0.0.1:8081"
	c.WorkerURL = "http://127.0.0.1:8080"
	c.PingPath = "/health"
	c.DBPath = "~/.storyqueue/drafts.db"
	c.BusyTimeout = 5 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.CheckTimeout = 3 * time.Second
	c.MaxBackoff = time.Minute
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.LogFile = "~/.storyqueue/client.log"
}

// RegisterFlags declares the client flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP("api-url", "a", d.APIURL, "story API base URL")
	fs.String("worker-url", d.WorkerURL, "worker control URL")
	fs.String("db-path", d.DBPath, "local draft database")
	fs.DurationP("online-check-interval", "i", d.OnlineCheckInterval, "check interval while online")
	fs.Duration("request-timeout", d.RequestTimeout, "timeout for story API requests")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "text, json or zerolog")
	fs.String("log-file", d.LogFile, "log file; empty logs to stderr")
}

// LoadConfig applies defaults, then the config file, .env/environment and
// finally explicitly set flags.
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
	return cfg, nil
}
