package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. IMAGE2VIDEO_KEY_ID or
// IMAGE2VIDEO_SESSION_TIMEOUT_SECONDS.
const EnvPrefix = "IMAGE2VIDEO"

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config represents the complete image2video configuration
type Config struct {
	// APIURL is the video task submission endpoint
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	// ImageHostAPIKey authenticates uploads to the image host
	ImageHostAPIKey string `mapstructure:"image_host_api_key" yaml:"image_host_api_key"`
	// KeyID is the access key id used as the token issuer
	KeyID string `mapstructure:"key_id" yaml:"key_id"`
	// Secret signs the bearer tokens
	Secret string `mapstructure:"secret" yaml:"secret"`

	ImageHost  ImageHostConfig  `mapstructure:"image_host" yaml:"image_host"`
	Video      VideoConfig      `mapstructure:"video" yaml:"video"`
	Session    SessionConfig    `mapstructure:"session" yaml:"session"`
	Attachment AttachmentConfig `mapstructure:"attachment" yaml:"attachment"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// ImageHostConfig controls the image hosting client
type ImageHostConfig struct {
	// Endpoint is the upload URL (default: https://api.imgbb.com/1/upload)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// VideoConfig holds the generation settings sent with every task
type VideoConfig struct {
	ModelName string  `mapstructure:"model_name" yaml:"model_name"`
	Mode      string  `mapstructure:"mode" yaml:"mode"`
	Duration  string  `mapstructure:"duration" yaml:"duration"`
	CfgScale  float64 `mapstructure:"cfg_scale" yaml:"cfg_scale"`
}

// SessionConfig controls the per-user conversation
type SessionConfig struct {
	// TimeoutSeconds is how long a user has to send the next message (default: 180)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// TriggerPrefix starts a new conversation (default: "动起来")
	TriggerPrefix string `mapstructure:"trigger_prefix" yaml:"trigger_prefix"`
	// Store selects the backend: "memory" or "redis"
	Store string `mapstructure:"store" yaml:"store"`
	// RedisAddr is host:port of the Redis server when Store is "redis"
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	// RedisPrefix namespaces session keys in Redis
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// AttachmentConfig controls image retrieval
type AttachmentConfig struct {
	// Dir is where the chat host downloads attachments (default: "tmp")
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// HTTPConfig controls the retrying HTTP client
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// MaxAttempts counts every try, the first included (default: 3)
	MaxAttempts    int `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryWaitMinMs int `mapstructure:"retry_wait_min_ms" yaml:"retry_wait_min_ms"`
	RetryWaitMaxMs int `mapstructure:"retry_wait_max_ms" yaml:"retry_wait_max_ms"`
}

// ServerConfig controls the HTTP host adapter
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB rotates File once it reaches this size; 0 disables rotation
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values. Credentials have no
// defaults.
func Default() *Config {
	return &Config{
		ImageHost: ImageHostConfig{
			Endpoint: "https://api.imgbb.com/1/upload",
		},
		Video: VideoConfig{
			ModelName: "kling-v1-6",
			Mode:      "pro",
			Duration:  "10",
			CfgScale:  0.8,
		},
		Session: SessionConfig{
			TimeoutSeconds: 180,
			TriggerPrefix:  "动起来",
			Store:          StoreMemory,
			RedisAddr:      "localhost:6379",
			RedisPrefix:    "image2video:session:",
		},
		Attachment: AttachmentConfig{
			Dir: "tmp",
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
			MaxAttempts:    3,
			RetryWaitMinMs: 500,
			RetryWaitMaxMs: 4000,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SessionTimeout returns the session timeout as a time.Duration
func (c *SessionConfig) SessionTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-attempt HTTP timeout as a time.Duration
func (c *HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryWaitMin returns the first backoff delay as a time.Duration
func (c *HTTPConfig) RetryWaitMin() time.Duration {
	return time.Duration(c.RetryWaitMinMs) * time.Millisecond
}

// RetryWaitMax returns the backoff cap as a time.Duration
func (c *HTTPConfig) RetryWaitMax() time.Duration {
	return time.Duration(c.RetryWaitMaxMs) * time.Millisecond
}

// Redacted returns a copy with credentials masked, suitable for display.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.ImageHostAPIKey = mask(c.ImageHostAPIKey)
	cp.Secret = mask(c.Secret)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("api_url", defaults.APIURL)
	viper.SetDefault("image_host_api_key", defaults.ImageHostAPIKey)
	viper.SetDefault("key_id", defaults.KeyID)
	viper.SetDefault("secret", defaults.Secret)

	viper.SetDefault("image_host.endpoint", defaults.ImageHost.Endpoint)

	viper.SetDefault("video.model_name", defaults.Video.ModelName)
	viper.SetDefault("video.mode", defaults.Video.Mode)
	viper.SetDefault("video.duration", defaults.Video.Duration)
	viper.SetDefault("video.cfg_scale", defaults.Video.CfgScale)

	viper.SetDefault("session.timeout_seconds", defaults.Session.TimeoutSeconds)
	viper.SetDefault("session.trigger_prefix", defaults.Session.TriggerPrefix)
	viper.SetDefault("session.store", defaults.Session.Store)
	viper.SetDefault("session.redis_addr", defaults.Session.RedisAddr)
	viper.SetDefault("session.redis_prefix", defaults.Session.RedisPrefix)

	viper.SetDefault("attachment.dir", defaults.Attachment.Dir)

	viper.SetDefault("http.timeout_seconds", defaults.HTTP.TimeoutSeconds)
	viper.SetDefault("http.max_attempts", defaults.HTTP.MaxAttempts)
	viper.SetDefault("http.retry_wait_min_ms", defaults.HTTP.RetryWaitMinMs)
	viper.SetDefault("http.retry_wait_max_ms", defaults.HTTP.RetryWaitMaxMs)

	viper.SetDefault("server.addr", defaults.Server.Addr)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	cfg, err := Unmarshal()
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return cfg, nil
}

// Unmarshal reads the configuration from viper without validating it.
func Unmarshal() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "image2video")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".image2video"
	}
	return filepath.Join(home, ".config", "image2video")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
