// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (backing store, search index, cache, Kafka, pipeline stages, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Search   SearchConfig   `yaml:"search"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Usage    UsageConfig    `yaml:"usage"`
	Ontology OntologyConfig `yaml:"ontology"`
	Reports  ReportsConfig  `yaml:"reports"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig selects the backing document store driver ("postgres" or
// "sqlite").
type StoreConfig struct {
	Driver string `yaml:"driver"`
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

// SQLiteConfig points at the embedded store file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection and match-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
	// CommitBatch terms are flushed to the index before their offsets are
	// committed; an idle topic commits after CommitInterval.
	CommitBatch    int           `yaml:"commitBatch"`
	CommitInterval time.Duration `yaml:"commitInterval"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	OntologyTerms string `yaml:"ontologyTerms"`
}

// SearchConfig selects and parameterises the ontology term index.
type SearchConfig struct {
	Backend   string   `yaml:"backend"`
	Index     string   `yaml:"index"`
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	MaxHits   int      `yaml:"maxHits"`
	DataDir   string   `yaml:"dataDir"`
	Analyzer  string   `yaml:"analyzer"`
}

// IngestConfig controls the XML extraction run.
type IngestConfig struct {
	NCBIFile      string `yaml:"ncbiFile"`
	EBIFile       string `yaml:"ebiFile"`
	ProgressEvery int    `yaml:"progressEvery"`
	BatchSize     int    `yaml:"batchSize"`
}

// UsageConfig bounds the usage statistics pass.
type UsageConfig struct {
	MaxRecords    int  `yaml:"maxRecords"`
	ProgressEvery int  `yaml:"progressEvery"`
	SaveSnapshot  bool `yaml:"saveSnapshot"`
}

// OntologyConfig locates the ontology term graphs.
type OntologyConfig struct {
	Dir           string `yaml:"dir"`
	FilterDir     string `yaml:"filterDir"`
	ProgressEvery int    `yaml:"progressEvery"`
}

// ReportsConfig controls where CSV reports are written and where the
// field allow-list is read from.
type ReportsConfig struct {
	Dir            string `yaml:"dir"`
	AttributesFile string `yaml:"attributesFile"`
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
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
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

// Validate rejects settings the pipelines cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid store driver %q: must be \"postgres\" or \"sqlite\"", c.Store.Driver)
	}
	switch c.Search.Backend {
	case "elasticsearch", "local":
	default:
		return fmt.Errorf("invalid search backend %q: must be \"elasticsearch\" or \"local\"", c.Search.Backend)
	}
	switch c.Search.Analyzer {
	case "standard", "english":
	default:
		return fmt.Errorf("invalid search analyzer %q: must be \"standard\" or \"english\"", c.Search.Analyzer)
	}
	if c.Search.Index == "" {
		return fmt.Errorf("search index name is required")
	}
	if c.Ingest.BatchSize < 0 {
		return fmt.Errorf("ingest.batchSize must not be negative")
	}
	if c.Kafka.CommitBatch < 0 {
		return fmt.Errorf("kafka.commitBatch must not be negative")
	}
	if c.Usage.MaxRecords < 0 {
		return fmt.Errorf("usage.maxRecords must not be negative")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "postgres",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "biometa",
			User:            "biometa",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path: "data/biometa.sqlite",
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 4,
			CacheTTL: 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "biometa-term-indexer",
			Topics: KafkaTopics{
				OntologyTerms: "ontology-terms",
			},
			CommitBatch:    500,
			CommitInterval: 5 * time.Second,
		},
		Search: SearchConfig{
			Backend:   "elasticsearch",
			Index:     "biodata",
			Addresses: []string{"http://localhost:9200"},
			MaxHits:   10,
			DataDir:   "data/index",
			Analyzer:  "standard",
		},
		Ingest: IngestConfig{
			NCBIFile:      "metadata/ncbi_metadata.xml.gz",
			EBIFile:       "metadata/ebi_metadata.xml.gz",
			ProgressEvery: 1000000,
			BatchSize:     1000,
		},
		Usage: UsageConfig{
			MaxRecords:    2000000,
			ProgressEvery: 1000000,
			SaveSnapshot:  true,
		},
		Ontology: OntologyConfig{
			Dir:           "ontologies",
			FilterDir:     "ontologies/filter",
			ProgressEvery: 10000,
		},
		Reports: ReportsConfig{
			Dir:            "results",
			AttributesFile: "metadata/attributes.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads BM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BM_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("BM_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BM_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BM_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BM_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BM_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BM_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("BM_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("BM_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("BM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BM_KAFKA_COMMIT_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Kafka.CommitBatch = n
		}
	}
	if v := os.Getenv("BM_SEARCH_BACKEND"); v != "" {
		cfg.Search.Backend = v
	}
	if v := os.Getenv("BM_SEARCH_ADDRESSES"); v != "" {
		cfg.Search.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("BM_SEARCH_INDEX"); v != "" {
		cfg.Search.Index = v
	}
	if v := os.Getenv("BM_SEARCH_USERNAME"); v != "" {
		cfg.Search.Username = v
	}
	if v := os.Getenv("BM_SEARCH_PASSWORD"); v != "" {
		cfg.Search.Password = v
	}
	if v := os.Getenv("BM_SEARCH_ANALYZER"); v != "" {
		cfg.Search.Analyzer = v
	}
	if v := os.Getenv("BM_INGEST_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.BatchSize = n
		}
	}
	if v := os.Getenv("BM_USAGE_MAX_RECORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Usage.MaxRecords = n
		}
	}
	if v := os.Getenv("BM_REPORTS_DIR"); v != "" {
		cfg.Reports.Dir = v
	}
	if v := os.Getenv("BM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BM_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if v := os.Getenv("BM_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
