// Package config loads and validates the indexer configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Redis, Postgres, Kafka, Index, Batch, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Index     IndexConfig     `yaml:"index"`
	Batch     BatchConfig     `yaml:"batch"`
	Documents DocumentsConfig `yaml:"documents"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// RedisConfig holds the connection parameters of the index store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional
// document store backend.
type PostgresConfig struct {
	URL             string        `yaml:"url"`
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

// DSN returns a lib/pq-compatible data source name. URL, when set, wins over
// the individual parameters.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Topics        KafkaTopics   `yaml:"topics"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Documents     string `yaml:"documents"`
	IndexComplete string `yaml:"indexComplete"`
}

// FieldConfig describes one indexed text field.
type FieldConfig struct {
	Key string `yaml:"key"`
	// Boost overrides IndexConfig.DefaultBoost when set.
	Boost *float64 `yaml:"boost"`
	// BoostWhen replaces Boost for documents matching the rule.
	BoostWhen *BoostRule `yaml:"boostWhen"`
	// BoostFunc, when set, wins over Boost and BoostWhen.
	BoostFunc func(doc map[string]any) float64 `yaml:"-"`
	// Null defaults to true; a non-nullable field missing from a document
	// aborts its indexing.
	Null *bool `yaml:"null"`
}

// BoostRule is a declarative boost depending on another field of the
// document, e.g. a higher postcode boost for municipalities.
type BoostRule struct {
	Field string  `yaml:"field"`
	Value string  `yaml:"value"`
	Boost float64 `yaml:"boost"`
}

// Nullable reports whether the field may be absent from a document.
func (f FieldConfig) Nullable() bool {
	return f.Null == nil || *f.Null
}

// BoostFor resolves the field boost for doc.
func (f FieldConfig) BoostFor(doc map[string]any, defaultBoost float64) float64 {
	if f.BoostFunc != nil {
		return f.BoostFunc(doc)
	}
	if r := f.BoostWhen; r != nil {
		if v, ok := doc[r.Field]; ok && fmt.Sprint(v) == r.Value {
			return r.Boost
		}
	}
	if f.Boost != nil {
		return *f.Boost
	}
	return defaultBoost
}

// IndexConfig controls which fields are indexed and how they are scored.
type IndexConfig struct {
	Fields                []FieldConfig     `yaml:"fields"`
	Filters               []string          `yaml:"filters"`
	HousenumbersField     string            `yaml:"housenumbersField"`
	DefaultBoost          float64           `yaml:"defaultBoost"`
	ImportanceWeight      float64           `yaml:"importanceWeight"`
	GeohashPrecision      int               `yaml:"geohashPrecision"`
	Indexers              []string          `yaml:"indexers"`
	Deindexers            []string          `yaml:"deindexers"`
	Processors            []string          `yaml:"processors"`
	HousenumberProcessors []string          `yaml:"housenumberProcessors"`
	Synonyms              map[string]string `yaml:"synonyms"`
}

// HasFilter reports whether name is a configured filter.
func (c IndexConfig) HasFilter(name string) bool {
	for _, f := range c.Filters {
		if f == name {
			return true
		}
	}
	return false
}

// BatchConfig controls chunking, concurrency and throttling of bulk loads.
type BatchConfig struct {
	ChunkSize          int           `yaml:"chunkSize"`
	Workers            int           `yaml:"workers"`
	Throttle           time.Duration `yaml:"throttle"`
	BatchProcessors    []string      `yaml:"batchProcessors"`
	DocumentProcessors []string      `yaml:"documentProcessors"`
	// Progress lists the progress sinks: log, bar, kafka.
	Progress []string `yaml:"progress"`
}

// DocumentsConfig selects the canonical document store backend.
type DocumentsConfig struct {
	Backend string `yaml:"backend"`
	Table   string `yaml:"table"`
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
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
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

// Default returns the built-in configuration, modelled on a French address
// index.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "addok",
			User:            "addok",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "addok-indexer",
			Topics: KafkaTopics{
				Documents:     "addok.documents",
				IndexComplete: "addok.index-complete",
			},
			IdleTimeout: 10 * time.Second,
		},
		Index: DefaultIndex(),
		Batch: BatchConfig{
			ChunkSize:          1000,
			Workers:            runtime.GOMAXPROCS(0),
			Throttle:           time.Second,
			BatchProcessors:    []string{"require_id"},
			DocumentProcessors: []string{"prepare_housenumbers"},
			Progress:           []string{"log"},
		},
		Documents: DocumentsConfig{
			Backend: "redis",
			Table:   "documents",
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

// DefaultIndex returns the default index layout.
func DefaultIndex() IndexConfig {
	notNull := false
	nameBoost := 4.0
	return IndexConfig{
		Fields: []FieldConfig{
			{Key: "name", Boost: &nameBoost, Null: &notNull},
			{Key: "street"},
			{Key: "postcode", BoostWhen: &BoostRule{Field: "type", Value: "municipality", Boost: 1.2}},
			{Key: "city"},
			{Key: "housenumbers"},
			{Key: "context"},
		},
		Filters:               []string{"type", "postcode"},
		HousenumbersField:     "housenumbers",
		DefaultBoost:          1.0,
		ImportanceWeight:      0.1,
		GeohashPrecision:      8,
		Indexers:              []string{"fields", "geohash", "housenumbers", "filters"},
		Deindexers:            []string{"fields", "geohash", "housenumbers", "filters"},
		Processors:            []string{"tokenize", "normalize", "synonymize"},
		HousenumberProcessors: []string{"expand_ordinal"},
	}
}

// Validate rejects configurations the indexer cannot run with.
func (c *Config) Validate() error {
	if c.Index.DefaultBoost <= 0 {
		return fmt.Errorf("index.defaultBoost must be positive, got %v", c.Index.DefaultBoost)
	}
	if c.Index.GeohashPrecision < 1 || c.Index.GeohashPrecision > 12 {
		return fmt.Errorf("index.geohashPrecision must be in [1, 12], got %d", c.Index.GeohashPrecision)
	}
	if c.Batch.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunkSize must be positive, got %d", c.Batch.ChunkSize)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if c.Batch.Throttle < 0 {
		return fmt.Errorf("batch.throttle must not be negative, got %s", c.Batch.Throttle)
	}
	for _, f := range c.Index.Fields {
		if f.Key == "" {
			return fmt.Errorf("index.fields: every field needs a key")
		}
	}
	switch c.Documents.Backend {
	case "redis", "postgres":
	default:
		return fmt.Errorf("documents.backend must be redis or postgres, got %q", c.Documents.Backend)
	}
	return nil
}

// applyEnvOverrides reads ADDOK_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ADDOK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ADDOK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ADDOK_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("ADDOK_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("ADDOK_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("ADDOK_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("ADDOK_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("ADDOK_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("ADDOK_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("ADDOK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ADDOK_BATCH_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.ChunkSize = n
		}
	}
	if v := os.Getenv("ADDOK_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Workers = n
		}
	}
	if v := os.Getenv("ADDOK_BATCH_THROTTLE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Batch.Throttle = d
		}
	}
	if v := os.Getenv("ADDOK_DOCUMENTS_BACKEND"); v != "" {
		cfg.Documents.Backend = v
	}
	if v := os.Getenv("ADDOK_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ADDOK_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
