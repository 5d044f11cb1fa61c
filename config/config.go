// Package config loads the insight YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/insight/ai"
	"github.com/poiesic/insight/batch"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/index"
)

// Config holds the insight configuration.
type Config struct {
	AI      AIConfig      `yaml:"ai"`
	Batch   BatchConfig   `yaml:"batch"`
	Index   IndexConfig   `yaml:"index"`
	Query   QueryConfig   `yaml:"query"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// AIConfig holds embedding and generation provider settings.
type AIConfig struct {
	Provider       string   `yaml:"provider"` // openai (langchaingo, default) or direct (go-openai)
	Host           string   `yaml:"host"`     // sets both hosts unless overridden below
	EmbeddingHost  string   `yaml:"embedding_host"`
	GeneratorHost  string   `yaml:"generator_host"`
	EmbeddingModel string   `yaml:"embedding_model"`
	GeneratorModel string   `yaml:"generator_model"`
	APIKey         string   `yaml:"api_key"`
	Preamble       string   `yaml:"preamble"`
	Temperature    *float64 `yaml:"temperature"`
}

// BatchConfig holds batch embedding settings.
type BatchConfig struct {
	ChunkSize         int      `yaml:"chunk_size"`
	Workers           int      `yaml:"workers"`
	Policy            string   `yaml:"policy"` // fail-fast or skip (default)
	MaxAttempts       int      `yaml:"max_attempts"`
	RetryDelayMs      int      `yaml:"retry_delay_ms"`
	TimeoutSec        int      `yaml:"timeout_sec"` // per batch attempt, 0 = none
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
	Normalize         bool     `yaml:"normalize"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Metric string `yaml:"metric"` // cosine (default), dot, euclidean
}

// QueryConfig holds query pipeline settings.
type QueryConfig struct {
	K          int `yaml:"k"`
	TimeoutSec int `yaml:"timeout_sec"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path            string `yaml:"path"` // empty = in-memory only
	CacheEmbeddings bool   `yaml:"cache_embeddings"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load reads the YAML file at path, expands ${VAR} and ${VAR:-default}
// references, applies defaults and validates the result. An empty path
// returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("%w: failed to read config %s: %w", core.ErrConfig, path, err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse config: %w", core.ErrConfig, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	aiDefaults := ai.DefaultConfig()
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.AI.EmbeddingHost == "" {
		c.AI.EmbeddingHost = c.AI.Host
	}
	if c.AI.GeneratorHost == "" {
		c.AI.GeneratorHost = c.AI.Host
	}
	if c.AI.EmbeddingHost == "" {
		c.AI.EmbeddingHost = aiDefaults.EmbeddingHost
	}
	if c.AI.GeneratorHost == "" {
		c.AI.GeneratorHost = aiDefaults.GeneratorHost
	}
	if c.AI.EmbeddingModel == "" {
		c.AI.EmbeddingModel = aiDefaults.EmbeddingModel
	}
	if c.AI.GeneratorModel == "" {
		c.AI.GeneratorModel = aiDefaults.GeneratorModel
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.AI.Preamble == "" {
		c.AI.Preamble = aiDefaults.Preamble
	}
	if c.AI.Temperature == nil {
		t := aiDefaults.Temperature
		c.AI.Temperature = &t
	}

	batchDefaults := batch.DefaultConfig()
	if c.Batch.ChunkSize == 0 {
		c.Batch.ChunkSize = batchDefaults.ChunkSize
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = batchDefaults.Workers
	}
	if c.Batch.Policy == "" {
		c.Batch.Policy = batchDefaults.Policy.String()
	}
	if c.Batch.MaxAttempts <= 0 {
		c.Batch.MaxAttempts = batchDefaults.MaxAttempts
	}
	if c.Batch.RetryDelayMs <= 0 {
		c.Batch.RetryDelayMs = int(batchDefaults.RetryDelay / time.Millisecond)
	}
	if c.Batch.RequestsPerSecond == nil {
		rps := batchDefaults.RequestsPerSecond
		c.Batch.RequestsPerSecond = &rps
	}

	if c.Index.Metric == "" {
		c.Index.Metric = index.Cosine.Name()
	}

	if c.Query.K == 0 {
		c.Query.K = 3
	}
	if c.Query.TimeoutSec <= 0 {
		c.Query.TimeoutSec = 120
	}

	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 180
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness. Every error wraps core.ErrConfig.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "openai", "direct":
	default:
		return fmt.Errorf("%w: ai.provider must be \"openai\" or \"direct\", got %q", core.ErrConfig, c.AI.Provider)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfig, err)
	}
	if _, err := c.BatchConfig(); err != nil {
		return err
	}
	if _, err := index.MetricByName(c.Index.Metric); err != nil {
		return err
	}
	if c.Query.K < 0 {
		return fmt.Errorf("%w: query.k must not be negative, got %d", core.ErrConfig, c.Query.K)
	}
	if c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port must be between 1 and 65535, got %d", core.ErrConfig, c.HTTP.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn or error, got %q", core.ErrConfig, c.Logging.Level)
	}
	return nil
}

// AIConfig converts the ai section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGeneratorHost(c.AI.GeneratorHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGeneratorModel(c.AI.GeneratorModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithPreamble(c.AI.Preamble),
	}
	if c.AI.Temperature != nil {
		opts = append(opts, ai.WithTemperature(*c.AI.Temperature))
	}
	return ai.NewConfig(opts...)
}

// BatchConfig converts the batch section into a validated batch.Config.
func (c *Config) BatchConfig() (batch.Config, error) {
	policy, err := batch.ParsePolicy(c.Batch.Policy)
	if err != nil {
		return batch.Config{}, err
	}
	cfg := batch.Config{
		ChunkSize:    c.Batch.ChunkSize,
		Workers:      c.Batch.Workers,
		Policy:       policy,
		MaxAttempts:  c.Batch.MaxAttempts,
		RetryDelay:   time.Duration(c.Batch.RetryDelayMs) * time.Millisecond,
		BatchTimeout: time.Duration(c.Batch.TimeoutSec) * time.Second,
		Normalize:    c.Batch.Normalize,
	}
	if c.Batch.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *c.Batch.RequestsPerSecond
	}
	if err := cfg.Validate(); err != nil {
		return batch.Config{}, err
	}
	return cfg, nil
}

// Metric returns the configured similarity metric.
func (c *Config) Metric() (index.Metric, error) {
	return index.MetricByName(c.Index.Metric)
}

// QueryTimeout returns the per-query deadline.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Query.TimeoutSec) * time.Second
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
