package config

import "time"

// Config holds server and client configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	WSRateLimit       int           `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	DevTokens   bool          `mapstructure:"dev_tokens" yaml:"dev_tokens"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Client side.
	BackendURL       string `mapstructure:"backend_url" yaml:"backend_url"`
	HistoryLimit     int    `mapstructure:"history_limit" yaml:"history_limit"` // 0 loads the full history
	SubscriberBuffer int    `mapstructure:"subscriber_buffer" yaml:"subscriber_buffer"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "loopmarked.db",
		MaxMessageBytes:   1 << 20,
		WSRateLimit:       120,
		JWTSecret:         "change-me",
		JWTIssuer:         "loopmarked",
		JWTAudience:       "loopmarked-dashboard",
		TokenTTL:          24 * time.Hour,
		DevTokens:         true,
		LogLevel:          "info",
		BackendURL:        "http://localhost:8080",
		SubscriberBuffer:  32,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// DevTokens is a plain bool and is copied only when set.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.WSRateLimit != 0 {
		c.WSRateLimit = other.WSRateLimit
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.TokenTTL != 0 {
		c.TokenTTL = other.TokenTTL
	}
	if other.DevTokens {
		c.DevTokens = true
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.BackendURL != "" {
		c.BackendURL = other.BackendURL
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.SubscriberBuffer != 0 {
		c.SubscriberBuffer = other.SubscriberBuffer
	}
}
