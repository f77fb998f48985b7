// Package config loads runtime configuration from defaults, an optional YAML
// file and SOUSCHEF_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the souschef daemon.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Database DatabaseConfig `mapstructure:"database"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the inbound HTTP surface.
type ServerConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AgentConfig configures the outbound connection to the conversational agent.
type AgentConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig configures session persistence. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// SweepConfig configures the idle-session sweeper.
type SweepConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("agent.base_url", "http://localhost:8000")
	v.SetDefault("agent.timeout", 8*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("sweep.idle_timeout", 30*time.Minute)
	v.SetDefault("sweep.interval", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. When path is non-empty that exact file is
// required; otherwise a souschef.yaml in the working directory or $HOME is
// used if present. Environment variables such as SOUSCHEF_AGENT_BASE_URL
// override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SOUSCHEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("souschef")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Agent.BaseURL == "" {
		return errors.New("config: agent.base_url must not be empty")
	}
	if c.Agent.Timeout <= 0 {
		return errors.New("config: agent.timeout must be positive")
	}
	if c.Sweep.IdleTimeout <= 0 {
		return errors.New("config: sweep.idle_timeout must be positive")
	}
	if c.Sweep.Interval <= 0 {
		return errors.New("config: sweep.interval must be positive")
	}
	return nil
}
