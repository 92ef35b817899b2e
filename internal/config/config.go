package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Vision      VisionConfig      `yaml:"vision" mapstructure:"vision"`
	Advisory    AdvisoryConfig    `yaml:"advisory" mapstructure:"advisory"`
	Research    ResearchConfig    `yaml:"research" mapstructure:"research"`
	Engines     EnginesConfig     `yaml:"engines" mapstructure:"engines"`
	Debate      DebateConfig      `yaml:"debate" mapstructure:"debate"`
	Council     CouncilConfig     `yaml:"council" mapstructure:"council"`
	Commentary  CommentaryConfig  `yaml:"commentary" mapstructure:"commentary"`
	ObjectStore ObjectStoreConfig `yaml:"object_store" mapstructure:"object_store"`
	Valuation   ValuationConfig   `yaml:"valuation" mapstructure:"valuation"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the Postgres connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// VisionConfig holds vision-ensemble service settings.
type VisionConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AdvisoryConfig holds Anthropic settings for the three advisory voices.
type AdvisoryConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	OpusModel   string `yaml:"opus_model" mapstructure:"opus_model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ResearchConfig holds market-research API settings.
type ResearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// EnginesConfig holds enrichment-engine service settings.
type EnginesConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DebateConfig holds adversarial-debate service settings.
type DebateConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CouncilConfig holds final-authority council settings.
type CouncilConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CommentaryConfig holds commentary service settings.
type CommentaryConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ObjectStoreConfig holds capture-image blob store settings.
type ObjectStoreConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// ValuationConfig configures the valuation tables.
type ValuationConfig struct {
	TablesPath string `yaml:"tables_path" mapstructure:"tables_path"`
}

// PipelineConfig configures grading-run behavior.
type PipelineConfig struct {
	RetryAttempts   int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	StepTimeoutSecs int `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
}

// BatchConfig configures batch grading.
type BatchConfig struct {
	PauseSecs int `yaml:"pause_secs" mapstructure:"pause_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("GRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "grade.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("vision.base_url", "https://vision.slabworks.dev")
	v.SetDefault("vision.rate_limit", 1)
	v.SetDefault("advisory.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("advisory.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("advisory.opus_model", "claude-opus-4-6")
	v.SetDefault("advisory.max_tokens", 1024)
	v.SetDefault("research.base_url", "https://api.perplexity.ai")
	v.SetDefault("research.model", "sonar-pro")
	v.SetDefault("engines.base_url", "https://engines.slabworks.dev")
	v.SetDefault("engines.rate_limit", 2)
	v.SetDefault("debate.base_url", "https://arena.slabworks.dev")
	v.SetDefault("council.base_url", "https://council.slabworks.dev")
	v.SetDefault("commentary.base_url", "https://commentary.slabworks.dev")
	v.SetDefault("object_store.base_url", "https://objects.slabworks.dev")
	v.SetDefault("object_store.enabled", true)
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.step_timeout_secs", 120)
	v.SetDefault("batch.pause_secs", 2)

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
