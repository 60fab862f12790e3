// Package config loads application configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// LLMConfig holds model endpoint settings.
type LLMConfig struct {
	Model             string  `yaml:"model" mapstructure:"model"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// APIConfig holds upstream order API settings.
type APIConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures batching, concurrency and retry behavior.
type PipelineConfig struct {
	ChunkSize           int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	ParseConcurrency    int     `yaml:"parse_concurrency" mapstructure:"parse_concurrency"`
	ValidateConcurrency int     `yaml:"validate_concurrency" mapstructure:"validate_concurrency"`
	MaxRetries          int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelaySecs  float64 `yaml:"retry_base_delay_secs" mapstructure:"retry_base_delay_secs"`
}

// RetryBaseDelay returns the configured base delay as a duration.
func (p PipelineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(p.RetryBaseDelaySecs * float64(time.Second))
}

// StoreConfig configures the optional run/dead-letter persistence.
// An empty path disables persistence.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the dummy upstream orders API server.
type ServerConfig struct {
	Port       int   `yaml:"port" mapstructure:"port"`
	OrderCount int   `yaml:"order_count" mapstructure:"order_count"`
	Seed       int64 `yaml:"seed" mapstructure:"seed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORDERAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("api.base_url", "http://localhost:5001")
	v.SetDefault("api.timeout_secs", 30)
	v.SetDefault("pipeline.chunk_size", 25)
	v.SetDefault("pipeline.parse_concurrency", 10)
	v.SetDefault("pipeline.validate_concurrency", 10)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.retry_base_delay_secs", 10.0)
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.order_count", 250)
	v.SetDefault("server.seed", 42)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
