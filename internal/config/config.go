package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/piston"
)

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	RateLimit   float64  `mapstructure:"rate_limit"`
	RateBurst   int      `mapstructure:"rate_burst"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that sets those headers.
	TrustProxy   bool  `mapstructure:"trust_proxy"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

type UpstreamConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type RunConfig struct {
	DefaultTimeoutSeconds int           `mapstructure:"default_timeout_seconds"`
	TimeoutGrace          time.Duration `mapstructure:"timeout_grace"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Run      RunConfig      `mapstructure:"run"`
	Log      LogConfig      `mapstructure:"log"`
	NATS     NATSConfig     `mapstructure:"nats"`
}

// Load reads runkaro.yaml (from path, or . and $HOME/.runkaro when path is
// empty), a .env file if present, and RUNKARO_* environment overrides.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("runkaro")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.runkaro")
	}

	v.SetEnvPrefix("runkaro")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in the API key
	if k := cfg.Upstream.APIKey; strings.HasPrefix(k, "${") && strings.HasSuffix(k, "}") {
		cfg.Upstream.APIKey = os.Getenv(k[2 : len(k)-1])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults alone always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("upstream.url", piston.DefaultEndpoint)
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("run.default_timeout_seconds", 5)
	v.SetDefault("run.timeout_grace", 3*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "RUNKARO")
}

// Validate checks values that would make the relay misbehave at runtime.
func (c *Config) Validate() error {
	switch {
	case c.Upstream.URL == "":
		return fmt.Errorf("upstream.url is required")
	case c.Run.DefaultTimeoutSeconds <= 0:
		return fmt.Errorf("run.default_timeout_seconds must be positive, got %d", c.Run.DefaultTimeoutSeconds)
	case c.Run.TimeoutGrace < 0:
		return fmt.Errorf("run.timeout_grace must not be negative, got %s", c.Run.TimeoutGrace)
	case c.Server.RateLimit < 0:
		return fmt.Errorf("server.rate_limit must not be negative, got %v", c.Server.RateLimit)
	case c.Server.MaxBodyBytes < 0:
		return fmt.Errorf("server.max_body_bytes must not be negative, got %d", c.Server.MaxBodyBytes)
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
