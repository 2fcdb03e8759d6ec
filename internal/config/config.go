// Package config loads the add-on server configuration from a YAML file and
// HIPCONNECT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Redis         RedisConfig         `mapstructure:"redis"`
	HipChat       HipChatConfig       `mapstructure:"hipchat"`
	Install       InstallConfig       `mapstructure:"install"`
	Glance        GlanceConfig        `mapstructure:"glance"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Seed          SeedConfig          `mapstructure:"seed"`
}

type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	BaseURL       string        `mapstructure:"base_url"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	AdminPassword string        `mapstructure:"admin_password"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // memory, redis
	KeyPrefix string `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HipChatConfig struct {
	APIBase        string        `mapstructure:"api_base"`
	TokenTimeout   time.Duration `mapstructure:"token_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TokenURL is the client-credentials endpoint under the API base.
func (h HipChatConfig) TokenURL() string {
	return strings.TrimRight(h.APIBase, "/") + "/oauth/token"
}

type InstallConfig struct {
	// StrictTokenExchange aborts an install when the first token exchange fails.
	StrictTokenExchange bool `mapstructure:"strict_token_exchange"`
}

type GlanceConfig struct {
	AutoRefresh bool `mapstructure:"auto_refresh"`
}

type NotificationsConfig struct {
	Async     bool     `mapstructure:"async"`
	Queue     string   `mapstructure:"queue"`
	APIToken  string   `mapstructure:"api_token"`
	APITokens []string `mapstructure:"api_tokens"`
	InfoRoom  string   `mapstructure:"info_room"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	RoomID     string `mapstructure:"room_id"`
	RoomLevel  string `mapstructure:"room_level"`
}

type SeedConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration. An explicit path must exist; without one a
// config.yaml in the usual places is optional and defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("HIPCONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute URL, got %q", c.Server.BaseURL)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend)
	}
	if c.HipChat.TokenTimeout <= 0 {
		return fmt.Errorf("hipchat.token_timeout must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.admin_password", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "hipconnect.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.key_prefix", "hipchat-tokens:")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("hipchat.api_base", "https://api.hipchat.com/v2")
	v.SetDefault("hipchat.token_timeout", 5*time.Second)
	v.SetDefault("hipchat.request_timeout", 10*time.Second)

	v.SetDefault("install.strict_token_exchange", true)
	v.SetDefault("glance.auto_refresh", true)

	v.SetDefault("notifications.async", false)
	v.SetDefault("notifications.queue", "notifications")
	v.SetDefault("notifications.api_token", "")
	v.SetDefault("notifications.api_tokens", []string{})
	v.SetDefault("notifications.info_room", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.room_id", "")
	v.SetDefault("logger.room_level", "error")

	v.SetDefault("seed.path", "")
}
