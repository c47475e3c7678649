package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AnalyzerConfig holds the anomaly scorer options.
type AnalyzerConfig struct {
	Contamination float64 `yaml:"contamination"`
	EnsembleSize  int     `yaml:"ensemble_size"`
	RandomSeed    *int64  `yaml:"random_seed"`
	MaxSamples    int     `yaml:"max_samples"`
	NumWorkers    int     `yaml:"num_workers"`
}

// EncoderConfig controls persistence of the categorical codebook.
type EncoderConfig struct {
	VocabularyPath string `yaml:"vocabulary_path"`
}

// CSVConfig holds the configuration for the CSV writer.
type CSVConfig struct {
	Path string `yaml:"path"`
}

// GobConfig holds the configuration for the gob snapshot writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the configuration for the ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PostgresConfig holds the configuration for the PostgreSQL writer.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// WriterDef defines a single output writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	CSV        CSVConfig        `yaml:"csv"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

// PublisherConfig holds the NATS settings for anomaly events.
type PublisherConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// AlerterConfig controls the anomaly summary notification.
type AlerterConfig struct {
	Enabled      bool `yaml:"enabled"`
	MinAnomalies int  `yaml:"min_anomalies"`
	MaxRows      int  `yaml:"max_rows"`
}

// SMTPConfig holds the e-mail notifier settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// APIConfig holds the listen addresses of ts-api.
type APIConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	GRPCAddr     string `yaml:"grpc_addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Writers   []WriterDef     `yaml:"writers"`
	Publisher PublisherConfig `yaml:"publisher"`
	Alerter   AlerterConfig   `yaml:"alerter"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	API       APIConfig       `yaml:"api"`
}

const (
	DefaultContamination = 0.10
	DefaultEnsembleSize  = 100
	DefaultRandomSeed    = int64(42)
	DefaultMaxSamples    = 256
)

// Default returns a configuration with every option at its default value
// and a single enabled CSV writer.
func Default() *Config {
	cfg := &Config{
		Writers: []WriterDef{
			{Type: "csv", Enabled: true, CSV: CSVConfig{Path: "analyzed_data.csv"}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads the configuration from a YAML file, fills in defaults and
// validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset option with its default.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Analyzer.Contamination == 0 {
		c.Analyzer.Contamination = DefaultContamination
	}
	if c.Analyzer.EnsembleSize == 0 {
		c.Analyzer.EnsembleSize = DefaultEnsembleSize
	}
	if c.Analyzer.RandomSeed == nil {
		seed := DefaultRandomSeed
		c.Analyzer.RandomSeed = &seed
	}
	if c.Analyzer.MaxSamples == 0 {
		c.Analyzer.MaxSamples = DefaultMaxSamples
	}
	if c.Publisher.Subject == "" {
		c.Publisher.Subject = "ts.anomalies"
	}
	if c.Alerter.MinAnomalies == 0 {
		c.Alerter.MinAnomalies = 1
	}
	if c.Alerter.MaxRows == 0 {
		c.Alerter.MaxRows = 20
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.GRPCAddr == "" {
		c.API.GRPCAddr = ":9090"
	}
	if c.API.MaxBodyBytes == 0 {
		c.API.MaxBodyBytes = 64 << 20
	}
}

// Seed returns the configured random seed.
func (a AnalyzerConfig) Seed() int64 {
	if a.RandomSeed == nil {
		return DefaultRandomSeed
	}
	return *a.RandomSeed
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.Analyzer.Contamination <= 0 || c.Analyzer.Contamination >= 1 {
		return fmt.Errorf("analyzer.contamination must be in (0, 1), got %v", c.Analyzer.Contamination)
	}
	if c.Analyzer.EnsembleSize < 1 {
		return fmt.Errorf("analyzer.ensemble_size must be positive, got %d", c.Analyzer.EnsembleSize)
	}
	if c.Analyzer.MaxSamples < 2 {
		return fmt.Errorf("analyzer.max_samples must be at least 2, got %d", c.Analyzer.MaxSamples)
	}
	if c.Analyzer.NumWorkers < 0 {
		return fmt.Errorf("analyzer.num_workers must not be negative, got %d", c.Analyzer.NumWorkers)
	}
	for i, w := range c.Writers {
		if w.Type == "" {
			return fmt.Errorf("writers[%d]: missing type", i)
		}
	}
	if c.Publisher.Enabled && c.Publisher.NATSURL == "" {
		return fmt.Errorf("publisher.nats_url is required when the publisher is enabled")
	}
	return nil
}
