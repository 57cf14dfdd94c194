// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Redis      RedisConfig      `yaml:"redis"`
	ANN        ANNConfig        `yaml:"ann"`
	Cache      CacheConfig      `yaml:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Pagination PaginationConfig `yaml:"pagination"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Reranker   RerankerConfig   `yaml:"reranker"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json or console
}

// DBConfig holds connection-pool settings for the primary store.
type DBConfig struct {
	DSN          string   `yaml:"dsn"`
	PoolMin      int      `yaml:"pool_min" validate:"min=0"`
	PoolMax      int      `yaml:"pool_max" validate:"min=1"`
	PoolTimeout  Duration `yaml:"pool_timeout"`
	PoolMaxIdle  Duration `yaml:"pool_max_idle"`
	QueryTimeout Duration `yaml:"query_timeout"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	MaxRetries   int      `yaml:"max_retries" validate:"min=0,max=5"`
}

// RedisConfig holds settings for the secondary store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ANNConfig tunes approximate-nearest-neighbor recall per transaction.
type ANNConfig struct {
	Index    string `yaml:"index" validate:"oneof=ivfflat hnsw"`
	Probes   int    `yaml:"probes" validate:"min=1"`
	EfSearch int    `yaml:"ef_search" validate:"min=1"`
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	TTL     Duration `yaml:"ttl"`
	SoftCap int      `yaml:"soft_cap" validate:"min=1"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	TopKRetrieve     int      `yaml:"top_k_retrieve" validate:"min=1"`
	TopKFinal        int      `yaml:"top_k_final" validate:"min=1"`
	CrossWeight      float64  `yaml:"cross_weight" validate:"min=0,max=1"`
	RetrieveWeight   float64  `yaml:"retrieve_weight" validate:"min=0,max=1"`
	EnableRerank     bool     `yaml:"enable_rerank"`
	EnableExplain    bool     `yaml:"enable_explain"`
	EnableSkillGraph bool     `yaml:"enable_skill_graph"`
	RetrievalBudget  Duration `yaml:"retrieval_budget"`
}

// PaginationConfig bounds pagination depth.
type PaginationConfig struct {
	MaxOffset int `yaml:"max_offset" validate:"min=0"`
}

// EmbeddingConfig pins the expected embedding dimension.
type EmbeddingConfig struct {
	Dimension int `yaml:"dimension" validate:"min=1"`
}

// RerankerConfig holds settings for the cross-encoder service.
type RerankerConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		DB: DBConfig{
			DSN:          "postgres://localhost:5432/jobmatch?sslmode=disable",
			PoolMin:      2,
			PoolMax:      10,
			PoolTimeout:  Duration(5 * time.Second),
			PoolMaxIdle:  Duration(5 * time.Minute),
			QueryTimeout: Duration(10 * time.Second),
			RetryBackoff: Duration(100 * time.Millisecond),
			MaxRetries:   2,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		ANN: ANNConfig{
			Index:    "ivfflat",
			Probes:   10,
			EfSearch: 100,
		},
		Cache: CacheConfig{
			TTL:     Duration(5 * time.Minute),
			SoftCap: 1000,
		},
		Pipeline: PipelineConfig{
			TopKRetrieve:     100,
			TopKFinal:        25,
			CrossWeight:      0.7,
			RetrieveWeight:   0.3,
			EnableRerank:     true,
			EnableExplain:    true,
			EnableSkillGraph: true,
			RetrievalBudget:  Duration(2 * time.Second),
		},
		Pagination: PaginationConfig{
			MaxOffset: 1500,
		},
		Embedding: EmbeddingConfig{
			Dimension: 1024,
		},
		Reranker: RerankerConfig{
			Endpoint: "http://localhost:8501/rerank",
			Timeout:  Duration(2 * time.Second),
		},
	}
}

// Load loads the configuration from the given path, merging over defaults.
// A missing file is not an error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	// Best effort: a .env next to the binary feeds the env fallbacks below.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if dsn := os.Getenv("JOBMATCH_DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
	}
	if addr := os.Getenv("JOBMATCH_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("JOBMATCH_REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DB.PoolMin > c.DB.PoolMax {
		return fmt.Errorf("invalid config: pool_min %d exceeds pool_max %d", c.DB.PoolMin, c.DB.PoolMax)
	}
	if c.Pipeline.TopKFinal > c.Pipeline.TopKRetrieve {
		return fmt.Errorf("invalid config: top_k_final %d exceeds top_k_retrieve %d",
			c.Pipeline.TopKFinal, c.Pipeline.TopKRetrieve)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# jobmatch configuration
# ----------------------
# Durations accept ns, us, ms, s, m, h.
# ann.index options: ivfflat, hnsw

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
