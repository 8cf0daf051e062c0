// Package config loads the service configuration from an optional YAML file and MARKETMASTER_
// prefixed environment variables. Environment variables take precedence over the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aouyang1/go-marketmaster"
	"github.com/aouyang1/go-marketmaster/models"
	"github.com/aouyang1/go-marketmaster/source"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. MARKETMASTER_SERVER_ADDR
	EnvPrefix = "MARKETMASTER"

	// FileEnv names the environment variable holding the path of the YAML file
	FileEnv = "MARKETMASTER_CONFIG"
)

var (
	ErrNoAddr       = errors.New("no server listen address")
	ErrLogLevel     = errors.New("unknown log level")
	ErrLogFormat    = errors.New("unknown log format")
	ErrRequestRate  = errors.New("requests per second must be positive")
	ErrMaxTries     = errors.New("max tries must be at least 1")
	ErrUploadLimit  = errors.New("upload limit must be positive")
	ErrPipelineOpts = errors.New("invalid pipeline defaults")
)

type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Yahoo    YahooConfig    `yaml:"yahoo" envconfig:"YAHOO"`
	Retry    RetryConfig    `yaml:"retry" envconfig:"RETRY"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

type YahooConfig struct {
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst" envconfig:"BURST"`
}

type RetryConfig struct {
	MaxTries        uint          `yaml:"max_tries" envconfig:"MAX_TRIES"`
	InitialInterval time.Duration `yaml:"initial_interval" envconfig:"INITIAL_INTERVAL"`
	Multiplier      float64       `yaml:"multiplier" envconfig:"MULTIPLIER"`
	MaxInterval     time.Duration `yaml:"max_interval" envconfig:"MAX_INTERVAL"`
}

// PipelineConfig holds the defaults used when a stage request omits its options
type PipelineConfig struct {
	Window   int     `yaml:"window" envconfig:"WINDOW"`
	TestSize float64 `yaml:"test_size" envconfig:"TEST_SIZE"`
	Seed     int64   `yaml:"seed" envconfig:"SEED"`
	Clusters int     `yaml:"clusters" envconfig:"CLUSTERS"`
}

// Default returns the configuration used for every value neither the file nor the environment
// sets
func Default() *Config {
	yahoo := source.NewDefaultYahooOptions()
	retry := source.NewDefaultRetryOptions()
	features := marketmaster.NewDefaultFeatureOptions()
	split := marketmaster.NewDefaultSplitOptions()
	train := marketmaster.NewDefaultTrainOptions()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Yahoo: YahooConfig{
			BaseURL:           yahoo.BaseURL,
			Timeout:           yahoo.Timeout,
			RequestsPerSecond: yahoo.RequestsPerSecond,
			Burst:             yahoo.Burst,
		},
		Retry: RetryConfig{
			MaxTries:        retry.MaxTries,
			InitialInterval: retry.InitialInterval,
			Multiplier:      retry.Multiplier,
			MaxInterval:     retry.MaxInterval,
		},
		Pipeline: PipelineConfig{
			Window:   features.Window,
			TestSize: split.TestSize,
			Seed:     split.Seed,
			Clusters: train.Clusters,
		},
	}
}

// Load starts from the defaults, applies the YAML file named by MARKETMASTER_CONFIG if set and
// then any MARKETMASTER_ environment variables
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open config file, %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("unable to load config file %s, %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("unable to load config from env, %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return ErrNoAddr
	}
	if c.Server.MaxUploadBytes <= 0 {
		return ErrUploadLimit
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%q, %w", c.Logging.Format, ErrLogFormat)
	}
	if c.Yahoo.RequestsPerSecond <= 0 {
		return ErrRequestRate
	}
	if c.Retry.MaxTries < 1 {
		return ErrMaxTries
	}
	p := c.Pipeline
	if p.Window < marketmaster.MinWindow || p.Window > marketmaster.MaxWindow {
		return fmt.Errorf("window %d, %w", p.Window, ErrPipelineOpts)
	}
	if _, err := c.SplitOptions().Validate(); err != nil {
		return fmt.Errorf("%w, %w", err, ErrPipelineOpts)
	}
	if p.Clusters < marketmaster.MinClusters || p.Clusters > marketmaster.MaxClusters {
		return fmt.Errorf("clusters %d, %w", p.Clusters, ErrPipelineOpts)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog level
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("%q, %w", l.Level, ErrLogLevel)
	}
	return level, nil
}

// NewLogger builds a JSON or text logger writing to w at the configured level
func (l LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(l.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("%q, %w", l.Format, ErrLogFormat)
	}
	return slog.New(handler).With("service", "marketmaster"), nil
}

func (c *Config) YahooOptions(logger *slog.Logger) *source.YahooOptions {
	return &source.YahooOptions{
		BaseURL:           c.Yahoo.BaseURL,
		Timeout:           c.Yahoo.Timeout,
		RequestsPerSecond: c.Yahoo.RequestsPerSecond,
		Burst:             c.Yahoo.Burst,
		Logger:            logger,
	}
}

func (c *Config) RetryOptions(logger *slog.Logger) *source.RetryOptions {
	return &source.RetryOptions{
		MaxTries:        c.Retry.MaxTries,
		InitialInterval: c.Retry.InitialInterval,
		Multiplier:      c.Retry.Multiplier,
		MaxInterval:     c.Retry.MaxInterval,
		Logger:          logger,
	}
}

func (c *Config) SplitOptions() *marketmaster.SplitOptions {
	return &marketmaster.SplitOptions{TestSize: c.Pipeline.TestSize, Seed: c.Pipeline.Seed}
}

// PipelineOptions returns pipeline options carrying the configured stage defaults. The caller
// sets the logger, presenter and fetcher per session.
func (c *Config) PipelineOptions() *marketmaster.Options {
	opt := marketmaster.NewDefaultOptions()
	opt.Features.Window = c.Pipeline.Window
	opt.Split = c.SplitOptions()
	opt.Train = &marketmaster.TrainOptions{
		Variants: []models.Variant{models.LinearRegression},
		Clusters: c.Pipeline.Clusters,
	}
	return opt
}
