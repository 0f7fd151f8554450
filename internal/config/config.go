package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	UploadDir     string `mapstructure:"upload_dir" yaml:"upload_dir"`
	UploadBaseURL string `mapstructure:"upload_base_url" yaml:"upload_base_url"`

	// SessionBuffer is the per-session event channel capacity; a
	// session whose buffer is full loses pushes instead of blocking
	// delivery to others.
	SessionBuffer int `mapstructure:"session_buffer" yaml:"session_buffer"`

	// WSRateLimit caps inbound frames per connection per minute.
	// Zero disables the limit.
	WSRateLimit int `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`

	// RequireFriendship gates direct messages on an accepted friend
	// relationship.
	RequireFriendship bool `mapstructure:"require_friendship" yaml:"require_friendship"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		DatabasePath:      "loopchat.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "loopchat",
		JWTAudience:       "loopchat",
		TokenTTL:          24 * time.Hour,
		LogLevel:          "info",
		LogFormat:         "console",
		UploadDir:         "uploads",
		UploadBaseURL:     "/uploads",
		SessionBuffer:     32,
		WSRateLimit:       120,
	}
}
