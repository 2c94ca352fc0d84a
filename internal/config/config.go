package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	AutoMigrate  bool   `mapstructure:"auto_migrate" yaml:"auto_migrate"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	BcryptCost  int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`

	// RequireWSToken rejects WebSocket connections without a valid ?token=.
	RequireWSToken bool `mapstructure:"require_ws_token" yaml:"require_ws_token"`
	// VerifyUserID rejects frames whose user_id differs from the token's user.
	VerifyUserID bool `mapstructure:"verify_user_id" yaml:"verify_user_id"`

	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	ClientBuffer       int           `mapstructure:"client_buffer" yaml:"client_buffer"`
	StoreTimeout       time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
	ErrorFrames        bool          `mapstructure:"error_frames" yaml:"error_frames"`
	OriginPatterns     []string      `mapstructure:"origin_patterns" yaml:"origin_patterns"`

	DisplayTimezone string `mapstructure:"display_timezone" yaml:"display_timezone"`
	DefaultAvatar   string `mapstructure:"default_avatar" yaml:"default_avatar"`

	// RedisAddr enables cluster-wide fan-out when set.
	RedisAddr          string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword      string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB            int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisChannelPrefix string `mapstructure:"redis_channel_prefix" yaml:"redis_channel_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "netchat.db",
		AutoMigrate:        true,
		JWTSecret:          "change-me",
		JWTIssuer:          "netchat",
		JWTAudience:        "netchat",
		JWTTTL:             24 * time.Hour,
		BcryptCost:         10,
		MaxMessageBytes:    1 << 20,
		RateLimitPerMinute: 120,
		ClientBuffer:       64,
		StoreTimeout:       5 * time.Second,
		DisplayTimezone:    "Local",
		DefaultAvatar:      "/media/default.jpg",
		RedisChannelPrefix: "netchat:net:",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Boolean switches are not merged; they only come from the loader.
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
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
}
