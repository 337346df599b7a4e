package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/GEGE-UNESP/ismr-downloader/internal/api"
	"github.com/GEGE-UNESP/ismr-downloader/internal/engine"
	"github.com/GEGE-UNESP/ismr-downloader/internal/timerange"
)

// Config defines configuration for the ismrget CLI. Start and End stay
// strings until Spec() so that date-only values keep their day-boundary
// normalization.
type Config struct {
	Stations          []string    `yaml:"stations"`
	DataType          string      `yaml:"data_type"`
	Start             string      `yaml:"start"`
	End               string      `yaml:"end"`
	MaxDays           int         `yaml:"max_days"`
	Workers           int         `yaml:"workers"`
	RequestsPerMinute int         `yaml:"requests_per_minute"`
	Overwrite         bool        `yaml:"overwrite"`
	OutputDir         string      `yaml:"output_dir"`
	LogsDir           string      `yaml:"logs_dir"`
	TokenFile         string      `yaml:"token_file"`
	API               APIConfig   `yaml:"api"`
	Retry             RetryConfig `yaml:"retry"`
}

// APIConfig defines how the client reaches the query tool.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Mode            string        `yaml:"mode"`
	Timeout         time.Duration `yaml:"timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	InsecureTLS     bool          `yaml:"insecure_tls"`
}

// RetryConfig defines retry behavior per status class.
type RetryConfig struct {
	ThrottleAttempts   int           `yaml:"throttle_attempts"`
	ThrottleBackoff    time.Duration `yaml:"throttle_backoff"`
	ThrottleMaxBackoff time.Duration `yaml:"throttle_max_backoff"`
	TimeoutAttempts    int           `yaml:"timeout_attempts"`
	TimeoutDelay       time.Duration `yaml:"timeout_delay"`
}

// Credentials for the token exchange. Never read from config files, only
// from the environment (or a .env file loaded before this).
type Credentials struct {
	Email    string `env:"ISMR_EMAIL" env-required:"true"`
	Password string `env:"ISMR_PASSWORD" env-required:"true"`
}

// LoadCredentials reads credentials from the environment.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := cleanenv.ReadEnv(&c); err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	return c, nil
}

// Default returns a Config with sensible defaults.
func Default() Config {
	p := engine.DefaultPolicy()
	a := api.DefaultOptions()
	return Config{
		DataType:          string(api.DataISMR),
		MaxDays:           15,
		Workers:           4,
		RequestsPerMinute: 10,
		OutputDir:         "downloads",
		LogsDir:           "logs",
		TokenFile:         ".token.json",
		API: APIConfig{
			BaseURL:         a.BaseURL,
			Mode:            string(a.Mode),
			Timeout:         a.Timeout,
			DownloadTimeout: a.DownloadTimeout,
		},
		Retry: RetryConfig{
			ThrottleAttempts:   p.ThrottleAttempts,
			ThrottleBackoff:    p.ThrottleBackoff,
			ThrottleMaxBackoff: p.ThrottleMaxBackoff,
			TimeoutAttempts:    p.TimeoutAttempts,
			TimeoutDelay:       p.TimeoutDelay,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Stations          []string        `yaml:"stations"`
	DataType          string          `yaml:"data_type"`
	Start             string          `yaml:"start"`
	End               string          `yaml:"end"`
	MaxDays           int             `yaml:"max_days"`
	Workers           int             `yaml:"workers"`
	RequestsPerMinute int             `yaml:"requests_per_minute"`
	Overwrite         bool            `yaml:"overwrite"`
	OutputDir         string          `yaml:"output_dir"`
	LogsDir           string          `yaml:"logs_dir"`
	TokenFile         string          `yaml:"token_file"`
	API               yamlAPIConfig   `yaml:"api"`
	Retry             yamlRetryConfig `yaml:"retry"`
}

type yamlAPIConfig struct {
	BaseURL         string `yaml:"base_url"`
	Mode            string `yaml:"mode"`
	Timeout         string `yaml:"timeout"`
	DownloadTimeout string `yaml:"download_timeout"`
	InsecureTLS     bool   `yaml:"insecure_tls"`
}

type yamlRetryConfig struct {
	ThrottleAttempts   int    `yaml:"throttle_attempts"`
	ThrottleBackoff    string `yaml:"throttle_backoff"`
	ThrottleMaxBackoff string `yaml:"throttle_max_backoff"`
	TimeoutAttempts    int    `yaml:"timeout_attempts"`
	TimeoutDelay       string `yaml:"timeout_delay"`
}

// LoadFromFile loads configuration from a YAML file, layered over the
// defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if len(yc.Stations) > 0 {
		cfg.Stations = yc.Stations
	}
	if yc.DataType != "" {
		cfg.DataType = yc.DataType
	}
	if yc.Start != "" {
		cfg.Start = yc.Start
	}
	if yc.End != "" {
		cfg.End = yc.End
	}
	if yc.MaxDays != 0 {
		cfg.MaxDays = yc.MaxDays
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.RequestsPerMinute != 0 {
		cfg.RequestsPerMinute = yc.RequestsPerMinute
	}
	cfg.Overwrite = yc.Overwrite
	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	if yc.LogsDir != "" {
		cfg.LogsDir = yc.LogsDir
	}
	if yc.TokenFile != "" {
		cfg.TokenFile = yc.TokenFile
	}
	if yc.API.BaseURL != "" {
		cfg.API.BaseURL = yc.API.BaseURL
	}
	if yc.API.Mode != "" {
		cfg.API.Mode = yc.API.Mode
	}
	if yc.API.Timeout != "" {
		d, err := time.ParseDuration(yc.API.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse api.timeout: %w", err)
		}
		cfg.API.Timeout = d
	}
	if yc.API.DownloadTimeout != "" {
		d, err := time.ParseDuration(yc.API.DownloadTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse api.download_timeout: %w", err)
		}
		cfg.API.DownloadTimeout = d
	}
	cfg.API.InsecureTLS = yc.API.InsecureTLS
	if yc.Retry.ThrottleAttempts != 0 {
		cfg.Retry.ThrottleAttempts = yc.Retry.ThrottleAttempts
	}
	if yc.Retry.ThrottleBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.ThrottleBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.throttle_backoff: %w", err)
		}
		cfg.Retry.ThrottleBackoff = d
	}
	if yc.Retry.ThrottleMaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.ThrottleMaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.throttle_max_backoff: %w", err)
		}
		cfg.Retry.ThrottleMaxBackoff = d
	}
	if yc.Retry.TimeoutAttempts != 0 {
		cfg.Retry.TimeoutAttempts = yc.Retry.TimeoutAttempts
	}
	if yc.Retry.TimeoutDelay != "" {
		d, err := time.ParseDuration(yc.Retry.TimeoutDelay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.timeout_delay: %w", err)
		}
		cfg.Retry.TimeoutDelay = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ISMR_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ISMR_STATIONS"); v != "" {
		c.Stations = SplitStations(v)
	}
	if v := os.Getenv("ISMR_DATA_TYPE"); v != "" {
		c.DataType = v
	}
	if v := os.Getenv("ISMR_START"); v != "" {
		c.Start = v
	}
	if v := os.Getenv("ISMR_END"); v != "" {
		c.End = v
	}
	if v := os.Getenv("ISMR_MAX_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ISMR_MAX_DAYS: %w", err)
		}
		c.MaxDays = n
	}
	if v := os.Getenv("ISMR_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ISMR_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ISMR_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ISMR_REQUESTS_PER_MINUTE: %w", err)
		}
		c.RequestsPerMinute = n
	}
	if v := os.Getenv("ISMR_OVERWRITE"); v != "" {
		c.Overwrite = v == "true" || v == "1"
	}
	if v := os.Getenv("ISMR_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("ISMR_LOGS_DIR"); v != "" {
		c.LogsDir = v
	}
	if v := os.Getenv("ISMR_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("ISMR_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("ISMR_INSECURE_TLS"); v != "" {
		c.API.InsecureTLS = v == "true" || v == "1"
	}

	return nil
}

// SplitStations splits a comma-separated station list, trimming blanks.
// An empty input yields nil.
func SplitStations(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Stations) == 0 {
		return errors.New("config: at least one station is required")
	}
	if c.Start == "" {
		return errors.New("config: start is required")
	}
	if c.End == "" {
		return errors.New("config: end is required")
	}
	if _, err := api.ParseDataType(c.DataType); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxDays <= 0 {
		return errors.New("config: max_days must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.RequestsPerMinute <= 0 {
		return errors.New("config: requests_per_minute must be positive")
	}
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	switch api.Mode(c.API.Mode) {
	case api.ModeBundle, api.ModeDirect:
	default:
		return fmt.Errorf("config: unknown api mode %q", c.API.Mode)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if len(override.Stations) > 0 {
		c.Stations = override.Stations
	}
	if override.DataType != "" {
		c.DataType = override.DataType
	}
	if override.Start != "" {
		c.Start = override.Start
	}
	if override.End != "" {
		c.End = override.End
	}
	if override.MaxDays != 0 {
		c.MaxDays = override.MaxDays
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.RequestsPerMinute != 0 {
		c.RequestsPerMinute = override.RequestsPerMinute
	}
	if override.Overwrite {
		c.Overwrite = true
	}
	if override.OutputDir != "" {
		c.OutputDir = override.OutputDir
	}
	if override.LogsDir != "" {
		c.LogsDir = override.LogsDir
	}
	if override.TokenFile != "" {
		c.TokenFile = override.TokenFile
	}
	if override.API.BaseURL != "" {
		c.API.BaseURL = override.API.BaseURL
	}
	if override.API.Mode != "" {
		c.API.Mode = override.API.Mode
	}
	if override.API.Timeout != 0 {
		c.API.Timeout = override.API.Timeout
	}
	if override.API.DownloadTimeout != 0 {
		c.API.DownloadTimeout = override.API.DownloadTimeout
	}
	if override.API.InsecureTLS {
		c.API.InsecureTLS = true
	}
	if override.Retry.ThrottleAttempts != 0 {
		c.Retry.ThrottleAttempts = override.Retry.ThrottleAttempts
	}
	if override.Retry.ThrottleBackoff != 0 {
		c.Retry.ThrottleBackoff = override.Retry.ThrottleBackoff
	}
	if override.Retry.ThrottleMaxBackoff != 0 {
		c.Retry.ThrottleMaxBackoff = override.Retry.ThrottleMaxBackoff
	}
	if override.Retry.TimeoutAttempts != 0 {
		c.Retry.TimeoutAttempts = override.Retry.TimeoutAttempts
	}
	if override.Retry.TimeoutDelay != 0 {
		c.Retry.TimeoutDelay = override.Retry.TimeoutDelay
	}
	return c
}

// Spec converts a validated Config into an engine request. Date-only
// start/end values are widened to the day boundaries.
func (c *Config) Spec() (engine.RequestSpec, error) {
	dt, err := api.ParseDataType(c.DataType)
	if err != nil {
		return engine.RequestSpec{}, err
	}
	start, err := timerange.ParseStart(c.Start)
	if err != nil {
		return engine.RequestSpec{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := timerange.ParseEnd(c.End)
	if err != nil {
		return engine.RequestSpec{}, fmt.Errorf("parse end: %w", err)
	}
	return engine.RequestSpec{
		Stations:          c.Stations,
		DataType:          dt,
		Start:             start,
		End:               end,
		MaxDays:           c.MaxDays,
		Workers:           c.Workers,
		RequestsPerMinute: c.RequestsPerMinute,
		Overwrite:         c.Overwrite,
	}, nil
}

// APIOptions converts the API section into client options.
func (c *Config) APIOptions() api.Options {
	opts := api.DefaultOptions()
	if c.API.BaseURL != "" {
		opts.BaseURL = c.API.BaseURL
	}
	if c.API.Mode != "" {
		opts.Mode = api.Mode(c.API.Mode)
	}
	if c.API.Timeout != 0 {
		opts.Timeout = c.API.Timeout
	}
	if c.API.DownloadTimeout != 0 {
		opts.DownloadTimeout = c.API.DownloadTimeout
	}
	opts.InsecureTLS = c.API.InsecureTLS
	return opts
}

// Policy converts the retry section into an engine policy.
func (c *Config) Policy() engine.Policy {
	p := engine.DefaultPolicy()
	if c.Retry.ThrottleAttempts != 0 {
		p.ThrottleAttempts = c.Retry.ThrottleAttempts
	}
	if c.Retry.ThrottleBackoff != 0 {
		p.ThrottleBackoff = c.Retry.ThrottleBackoff
	}
	if c.Retry.ThrottleMaxBackoff != 0 {
		p.ThrottleMaxBackoff = c.Retry.ThrottleMaxBackoff
	}
	if c.Retry.TimeoutAttempts != 0 {
		p.TimeoutAttempts = c.Retry.TimeoutAttempts
	}
	if c.Retry.TimeoutDelay != 0 {
		p.TimeoutDelay = c.Retry.TimeoutDelay
	}
	return p
}
