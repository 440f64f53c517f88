// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Index, Search, Redis, Kafka, Postgres, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// CorpusConfig points the extractor at the crawled pages.
type CorpusConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
	Selector  string `yaml:"selector"`
	Workers   int    `yaml:"workers"`
}

// IndexConfig controls where and how the index artifacts are persisted.
type IndexConfig struct {
	DataDir  string `yaml:"dataDir"`
	Backend  string `yaml:"backend"`
	Stemming bool   `yaml:"stemming"`
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// SearchConfig controls query defaults and the fuzzy-correction threshold.
type SearchConfig struct {
	DefaultTopK    int           `yaml:"defaultTopK"`
	MaxTopK        int           `yaml:"maxTopK"`
	FuzzyThreshold float64       `yaml:"fuzzyThreshold"`
	QueryTimeout   time.Duration `yaml:"queryTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables event publishing.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters. An empty
// address disables the query cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// AnalyticsConfig controls the search-event pipeline.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values, or an InvalidConfiguration error if the result fails validation.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Search.DefaultTopK < 1 {
		return apperrors.Invalidf("search.defaultTopK must be >= 1, got %d", c.Search.DefaultTopK)
	}
	if c.Search.MaxTopK < c.Search.DefaultTopK {
		return apperrors.Invalidf("search.maxTopK (%d) must be >= search.defaultTopK (%d)", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 100 {
		return apperrors.Invalidf("search.fuzzyThreshold must be within [0, 100], got %v", c.Search.FuzzyThreshold)
	}
	switch c.Index.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return apperrors.Invalidf("index.backend must be %q or %q, got %q", BackendJSON, BackendSQLite, c.Index.Backend)
	}
	if c.Index.DataDir == "" {
		return apperrors.Invalidf("index.dataDir is required")
	}
	if c.Corpus.Workers < 1 {
		return apperrors.Invalidf("corpus.workers must be >= 1, got %d", c.Corpus.Workers)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Dir:       "data",
			Extension: ".html",
			Selector:  "p",
			Workers:   4,
		},
		Index: IndexConfig{
			DataDir: "index",
			Backend: BackendJSON,
		},
		Search: SearchConfig{
			DefaultTopK:    5,
			MaxTopK:        100,
			FuzzyThreshold: 80,
			QueryTimeout:   5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "corpussearch",
			User:            "corpussearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "corpussearch-group",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("CS_INDEX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("CS_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("CS_SEARCH_DEFAULT_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultTopK = k
		}
	}
	if v := os.Getenv("CS_SEARCH_FUZZY_THRESHOLD"); v != "" {
		if th, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.FuzzyThreshold = th
		}
	}
	if v := os.Getenv("CS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
