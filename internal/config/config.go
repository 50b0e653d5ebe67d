package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Ingest    IngestConfig    `yaml:"ingest" envconfig:"INGEST"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Driver            string        `yaml:"driver" envconfig:"DRIVER" validate:"oneof=mongo sqlite"`
	URI               string        `yaml:"uri" envconfig:"URI"`
	Database          string        `yaml:"database" envconfig:"DATABASE" validate:"required"`
	RawCollection     string        `yaml:"raw_collection" envconfig:"RAW_COLLECTION" validate:"required"`
	SummaryCollection string        `yaml:"summary_collection" envconfig:"SUMMARY_COLLECTION" validate:"required"`
	SQLitePath        string        `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	WriteMode         string        `yaml:"write_mode" envconfig:"WRITE_MODE" validate:"oneof=insert upsert"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT" validate:"gt=0"`
}

// IngestConfig contains the file ingestion settings
type IngestConfig struct {
	WatchDir       string        `yaml:"watch_dir" envconfig:"WATCH_DIR" validate:"required"`
	Prefix         string        `yaml:"prefix" envconfig:"PREFIX" validate:"required"`
	Extensions     []string      `yaml:"extensions" envconfig:"EXTENSIONS" validate:"min=1"`
	Cutoff         string        `yaml:"cutoff" envconfig:"CUTOFF" validate:"required"`
	MinRatID       int           `yaml:"min_rat_id" envconfig:"MIN_RAT_ID" validate:"min=0"`
	MaxRatID       int           `yaml:"max_rat_id" envconfig:"MAX_RAT_ID" validate:"gtefield=MinRatID"`
	SampleBytes    int           `yaml:"sample_bytes" envconfig:"SAMPLE_BYTES" validate:"gt=0"`
	Debounce       time.Duration `yaml:"debounce" envconfig:"DEBOUNCE"`
	SettleAttempts uint          `yaml:"settle_attempts" envconfig:"SETTLE_ATTEMPTS" validate:"min=1"`
	SettleDelay    time.Duration `yaml:"settle_delay" envconfig:"SETTLE_DELAY"`
	ScanOnStart    bool          `yaml:"scan_on_start" envconfig:"SCAN_ON_START"`
	Watch          bool          `yaml:"watch" envconfig:"WATCH"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Enabled         bool            `yaml:"enabled" envconfig:"ENABLED"`
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	ServiceName     string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TracingEnabled  bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	TracingExporter string `yaml:"tracing_exporter" envconfig:"TRACING_EXPORTER" validate:"oneof=stdout none"`
	MetricsEnabled  bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first. configFile may be empty, in
// which case the usual locations are searched.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment variables override the file
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// CutoffDate returns the parsed ingestion cutoff at midnight UTC.
func (c *Config) CutoffDate() (time.Time, error) {
	return time.ParseInLocation(DateLayout, c.Ingest.Cutoff, time.UTC)
}

// HasExtension reports whether ext (with leading dot) is accepted for ingestion.
func (c *Config) HasExtension(ext string) bool {
	for _, e := range c.Ingest.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

var validate = validator.New()

// validate validates the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := c.CutoffDate(); err != nil {
		return fmt.Errorf("invalid ingest cutoff %q: %w", c.Ingest.Cutoff, err)
	}

	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.URI == "" {
			return fmt.Errorf("store uri is required for the %s driver", DriverMongo)
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the %s driver", DriverSQLite)
		}
	}

	for i, ext := range c.Ingest.Extensions {
		if !strings.HasPrefix(ext, ".") {
			c.Ingest.Extensions[i] = "." + ext
		}
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:            DriverMongo,
			URI:               DefaultMongoURI,
			Database:          DefaultDatabase,
			RawCollection:     DefaultRawCollection,
			SummaryCollection: DefaultSummaryCollection,
			SQLitePath:        DefaultSQLitePath,
			WriteMode:         WriteModeUpsert,
			ConnectTimeout:    10 * time.Second,
		},
		Ingest: IngestConfig{
			WatchDir:       DefaultWatchDir,
			Prefix:         DefaultFilePrefix,
			Extensions:     []string{".csv", ".xls", ".xlsx"},
			Cutoff:         DefaultCutoff,
			MinRatID:       DefaultMinRatID,
			MaxRatID:       DefaultMaxRatID,
			SampleBytes:    DefaultSampleBytes,
			Debounce:       500 * time.Millisecond,
			SettleAttempts: 10,
			SettleDelay:    250 * time.Millisecond,
			ScanOnStart:    true,
			Watch:          true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			ServiceName:     AppName,
			TracingEnabled:  false,
			TracingExporter: "none",
			MetricsEnabled:  true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
	}
}
