package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName     = "complaint-engine"
	defaultServiceVersion  = "1.0.0"
	defaultServicePort     = 8070
	defaultConcurrency     = 10
	defaultBatchSize       = 100
	defaultPollIntervalSec = 30
	defaultPageSize        = 20
	defaultIndexRPS        = 10
	defaultQueueSize       = 1024
	defaultStorageBackend  = "memory"
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "complaints"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultESURL           = "http://localhost:9200"
	defaultESMaxRetries    = 3
	defaultESTimeoutSec    = 30
	defaultESIndex         = "complaints"
	defaultRedisURL        = "localhost:6379"
	defaultRedisMaxRetries = 3
	defaultRedisTimeoutSec = 5
	defaultRecentTTLHours  = 24
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultModelPath       = "model/complaint_model.json"
	defaultConfidence      = 0.5
	defaultSimilarity      = 0.8
	defaultAgeFactorCap    = 3.0
	defaultLockTimeoutSec  = 5
	defaultMinTextLength   = 10
	defaultMaxTextLength   = 5000
	defaultSubmitRPS       = 25
)

// Storage backend names accepted by StorageConfig.Backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the complaint engine.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	Logging       LoggingConfig       `yaml:"logging"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Intake        IntakeConfig        `yaml:"intake"`
	Ranking       RankingConfig       `yaml:"ranking"`
	Registry      RegistryConfig      `yaml:"registry"`
	Auth          AuthConfig          `yaml:"auth"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Port         int           `env:"ENGINE_PORT"        yaml:"port"`
	Debug        bool          `env:"APP_DEBUG"          yaml:"debug"`
	Concurrency  int           `env:"ENGINE_CONCURRENCY" yaml:"concurrency"`
	BatchSize    int           `yaml:"batch_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PageSize     int           `yaml:"page_size"`
	IndexRPS     int           `yaml:"index_rps"`  // index writes per second
	QueueSize    int           `yaml:"queue_size"` // live refresh queue capacity
}

// StorageConfig selects the complaint store backend.
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" yaml:"backend"` // memory, postgres
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// ElasticsearchConfig holds the optional search index configuration.
type ElasticsearchConfig struct {
	Enabled    bool          `env:"ELASTICSEARCH_ENABLED" yaml:"enabled"`
	URL        string        `env:"ELASTICSEARCH_URL"     yaml:"url"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
	Index      string        `yaml:"index"`
}

// RedisConfig holds the optional recent-submission tracker configuration.
type RedisConfig struct {
	Enabled    bool          `env:"REDIS_ENABLED"  yaml:"enabled"`
	URL        string        `env:"REDIS_URL"      yaml:"url"`
	Password   string        `env:"REDIS_PASSWORD" yaml:"password"`
	Database   int           `yaml:"database"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
	RecentTTL  time.Duration `yaml:"recent_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
	Output string `yaml:"output"`
}

// ClassifierConfig holds classification settings.
type ClassifierConfig struct {
	ModelPath           string  `env:"MODEL_PATH" yaml:"model_path"`
	RulesPath           string  `yaml:"rules_path"` // optional keyword rules override
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// IntakeConfig holds submission validation and deduplication settings.
type IntakeConfig struct {
	MinTextLength       int     `yaml:"min_text_length"`
	MaxTextLength       int     `yaml:"max_text_length"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DropDir             string  `env:"INTAKE_DROP_DIR" yaml:"drop_dir"` // empty disables bulk imports
	SubmitRPS           int     `yaml:"submit_rps"`                     // rate limit for bulk imports
}

// RankingConfig holds priority scoring settings.
type RankingConfig struct {
	AgeFactorCap   float64            `yaml:"age_factor_cap"`
	UrgencyWeights map[string]float64 `yaml:"urgency_weights"`
}

// RegistryConfig holds complaint registry settings.
type RegistryConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// Load loads configuration from the specified path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg, err := loadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment variable
// overrides applied, for running without a config file.
func Default() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}
	var cfg Config
	setDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values that would make the engine misbehave at runtime.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port: must be between 1 and 65535, got %d", c.Service.Port)
	}
	if c.Storage.Backend != BackendMemory && c.Storage.Backend != BackendPostgres {
		return fmt.Errorf("storage.backend: must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Storage.Backend)
	}
	if c.Classifier.ConfidenceThreshold <= 0 || c.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier.confidence_threshold: must be in (0, 1], got %v", c.Classifier.ConfidenceThreshold)
	}
	if c.Intake.SimilarityThreshold <= 0 || c.Intake.SimilarityThreshold > 1 {
		return fmt.Errorf("intake.similarity_threshold: must be in (0, 1], got %v", c.Intake.SimilarityThreshold)
	}
	if c.Intake.MinTextLength > c.Intake.MaxTextLength {
		return fmt.Errorf("intake.min_text_length: %d exceeds max_text_length %d", c.Intake.MinTextLength, c.Intake.MaxTextLength)
	}
	return nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setStorageDefaults(&cfg.Storage)
	setDatabaseDefaults(&cfg.Database)
	setElasticsearchDefaults(&cfg.Elasticsearch)
	setRedisDefaults(&cfg.Redis)
	setLoggingDefaults(&cfg.Logging)
	setClassifierDefaults(&cfg.Classifier)
	setIntakeDefaults(&cfg.Intake)
	setRankingDefaults(&cfg.Ranking)
	setRegistryDefaults(&cfg.Registry)
	// Auth defaults are handled by env tags - no explicit defaults needed
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultConcurrency
	}
	if s.BatchSize == 0 {
		s.BatchSize = defaultBatchSize
	}
	if s.PollInterval == 0 {
		s.PollInterval = defaultPollIntervalSec * time.Second
	}
	if s.PageSize == 0 {
		s.PageSize = defaultPageSize
	}
	if s.IndexRPS == 0 {
		s.IndexRPS = defaultIndexRPS
	}
	if s.QueueSize == 0 {
		s.QueueSize = defaultQueueSize
	}
}

func setStorageDefaults(s *StorageConfig) {
	if s.Backend == "" {
		s.Backend = defaultStorageBackend
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setElasticsearchDefaults(e *ElasticsearchConfig) {
	if e.URL == "" {
		e.URL = defaultESURL
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = defaultESMaxRetries
	}
	if e.Timeout == 0 {
		e.Timeout = defaultESTimeoutSec * time.Second
	}
	if e.Index == "" {
		e.Index = defaultESIndex
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.URL == "" {
		r.URL = defaultRedisURL
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = defaultRedisMaxRetries
	}
	if r.Timeout == 0 {
		r.Timeout = defaultRedisTimeoutSec * time.Second
	}
	if r.RecentTTL == 0 {
		r.RecentTTL = defaultRecentTTLHours * time.Hour
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}

func setClassifierDefaults(c *ClassifierConfig) {
	if c.ModelPath == "" {
		c.ModelPath = defaultModelPath
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = defaultConfidence
	}
}

func setIntakeDefaults(i *IntakeConfig) {
	if i.MinTextLength == 0 {
		i.MinTextLength = defaultMinTextLength
	}
	if i.MaxTextLength == 0 {
		i.MaxTextLength = defaultMaxTextLength
	}
	if i.SimilarityThreshold == 0 {
		i.SimilarityThreshold = defaultSimilarity
	}
	if i.SubmitRPS == 0 {
		i.SubmitRPS = defaultSubmitRPS
	}
}

func setRankingDefaults(r *RankingConfig) {
	if r.AgeFactorCap == 0 {
		r.AgeFactorCap = defaultAgeFactorCap
	}
}

func setRegistryDefaults(r *RegistryConfig) {
	if r.LockTimeout == 0 {
		r.LockTimeout = defaultLockTimeoutSec * time.Second
	}
}
