// Package config loads the service configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aouyang1/go-demand-forecaster/forecast/options"
	"github.com/aouyang1/go-demand-forecaster/logger"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DEMAND_"

var ErrNoDataSource = errors.New("source.url or source.path is required")

type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Registry  RegistryConfig  `yaml:"registry"`
	Model     ModelConfig     `yaml:"model"`
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       logger.Config   `yaml:"log"`
}

type SourceConfig struct {
	URL         string        `yaml:"url" validate:"omitempty,url"`
	Path        string        `yaml:"path"`
	Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	DateLayouts []string      `yaml:"date_layouts"`
}

type RegistryConfig struct {
	Capacity   int           `yaml:"capacity" default:"512" validate:"gt=0"`
	TTL        time.Duration `yaml:"ttl" default:"24h" validate:"gte=0"`
	FitTimeout time.Duration `yaml:"fit_timeout" default:"30s" validate:"gte=0"`
}

// ModelConfig mirrors the forecast options. The defaults are the fixed configuration every
// key is trained with.
type ModelConfig struct {
	SeasonalityMode       string  `yaml:"seasonality_mode" default:"multiplicative" validate:"oneof=additive multiplicative"`
	YearlySeasonality     *bool   `yaml:"yearly_seasonality" default:"true"`
	WeeklySeasonality     *bool   `yaml:"weekly_seasonality" default:"false"`
	DailySeasonality      *bool   `yaml:"daily_seasonality" default:"false"`
	YearlyOrders          int     `yaml:"yearly_orders" default:"10" validate:"gte=0"`
	ChangepointPriorScale float64 `yaml:"changepoint_prior_scale" default:"0.05" validate:"gt=0"`
	NumChangepoints       int     `yaml:"num_changepoints" default:"25" validate:"gte=0"`
	ChangepointRange      float64 `yaml:"changepoint_range" default:"0.8" validate:"gt=0,lte=1"`
	IntervalWidth         float64 `yaml:"interval_width" default:"0.8" validate:"gt=0,lt=1"`
	Iterations            int     `yaml:"iterations" default:"1000" validate:"gt=0"`
	Tolerance             float64 `yaml:"tolerance" default:"0.0001" validate:"gt=0"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	MaxHorizon      int           `yaml:"max_horizon" default:"60" validate:"gt=0"`
}

type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec" default:"@daily" validate:"required"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Missing fields take their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML when path is set and overrides with environment
// variables.
func LoadWithEnv(path string) (*Config, error) {
	var c *Config
	var err error
	if path != "" {
		c, err = Load(path)
	} else {
		c, err = Default()
	}
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvPrefix + "SOURCE_URL"); v != "" {
		c.Source.URL = v
	}
	if v := getenv(EnvPrefix + "SOURCE_PATH"); v != "" {
		c.Source.Path = v
	}
	if v := getenv(EnvPrefix + "DATE_LAYOUTS"); v != "" {
		c.Source.DateLayouts = strings.Split(v, ",")
	}
	if v := getenv(EnvPrefix + "SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv(EnvPrefix + "SCHEDULER_SPEC"); v != "" {
		c.Scheduler.Spec = v
		c.Scheduler.Enabled = true
	}
	if v := getenv(EnvPrefix + "REGISTRY_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREGISTRY_CAPACITY: %w", EnvPrefix, err)
		}
		c.Registry.Capacity = n
	}
	if v := getenv(EnvPrefix + "REGISTRY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREGISTRY_TTL: %w", EnvPrefix, err)
		}
		c.Registry.TTL = d
	}
	if v := getenv(EnvPrefix + "FIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sFIT_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Registry.FitTimeout = d
	}
	return nil
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// ValidateSource reports whether a data source is configured.
func (c *Config) ValidateSource() error {
	if c.Source.URL == "" && c.Source.Path == "" {
		return ErrNoDataSource
	}
	return nil
}

// ForecastOptions converts the model section into forecast options.
func (m ModelConfig) ForecastOptions() *options.Options {
	opt := options.NewDefaultOptions()
	opt.SeasonalityMode = options.SeasonalityMode(m.SeasonalityMode)
	opt.SeasonalityOptions.Yearly = boolOr(m.YearlySeasonality, true)
	opt.SeasonalityOptions.Weekly = boolOr(m.WeeklySeasonality, false)
	opt.SeasonalityOptions.Daily = boolOr(m.DailySeasonality, false)
	opt.SeasonalityOptions.YearlyOrders = m.YearlyOrders
	opt.ChangepointOptions.PriorScale = m.ChangepointPriorScale
	opt.ChangepointOptions.NumChangepoints = m.NumChangepoints
	opt.ChangepointOptions.Range = m.ChangepointRange
	opt.IntervalWidth = m.IntervalWidth
	opt.Iterations = m.Iterations
	opt.Tolerance = m.Tolerance
	return opt
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}
