package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aouyang1/go-demand-forecaster/forecast/options"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.Nil(t, err)
	require.Nil(t, c.Validate())

	assert.Equal(t, 512, c.Registry.Capacity)
	assert.Equal(t, 24*time.Hour, c.Registry.TTL)
	assert.Equal(t, 30*time.Second, c.Registry.FitTimeout)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "@daily", c.Scheduler.Spec)
	assert.False(t, c.Scheduler.Enabled)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)

	opt := c.Model.ForecastOptions()
	assert.Equal(t, options.NewDefaultOptions(), opt)
	assert.ErrorIs(t, c.ValidateSource(), ErrNoDataSource)
}

func TestParse(t *testing.T) {
	testData := map[string]struct {
		input  string
		check  func(t *testing.T, c *Config)
		hasErr bool
	}{
		"overrides keep unset defaults": {
			input: `
source:
  url: https://example.com/demand.csv
registry:
  capacity: 16
  ttl: 1h
model:
  yearly_seasonality: false
  seasonality_mode: additive
`,
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "https://example.com/demand.csv", c.Source.URL)
				assert.Equal(t, 16, c.Registry.Capacity)
				assert.Equal(t, time.Hour, c.Registry.TTL)
				assert.Equal(t, 30*time.Second, c.Registry.FitTimeout)
				assert.Nil(t, c.ValidateSource())

				opt := c.Model.ForecastOptions()
				assert.False(t, opt.SeasonalityOptions.Yearly)
				assert.Equal(t, options.SeasonalityModeAdditive, opt.SeasonalityMode)
				assert.Equal(t, 0.05, opt.ChangepointOptions.PriorScale)
			},
		},
		"invalid seasonality mode": {
			input:  "model:\n  seasonality_mode: exponential\n",
			hasErr: true,
		},
		"invalid capacity": {
			input:  "registry:\n  capacity: -1\n",
			hasErr: true,
		},
		"invalid interval width": {
			input:  "model:\n  interval_width: 1.5\n",
			hasErr: true,
		},
		"invalid url": {
			input:  "source:\n  url: not a url\n",
			hasErr: true,
		},
		"malformed yaml": {
			input:  "registry: [",
			hasErr: true,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(td.input))
			if td.hasErr {
				assert.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			td.check(t, c)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte("source:\n  path: data.csv\n"), 0o644))

	t.Setenv("DEMAND_REGISTRY_CAPACITY", "8")
	t.Setenv("DEMAND_REGISTRY_TTL", "2h")
	t.Setenv("DEMAND_SCHEDULER_SPEC", "@every 1h")
	t.Setenv("DEMAND_LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	require.Nil(t, err)
	assert.Equal(t, "data.csv", c.Source.Path)
	assert.Equal(t, 8, c.Registry.Capacity)
	assert.Equal(t, 2*time.Hour, c.Registry.TTL)
	assert.True(t, c.Scheduler.Enabled)
	assert.Equal(t, "@every 1h", c.Scheduler.Spec)
	assert.Equal(t, "debug", c.Log.Level)

	t.Setenv("DEMAND_REGISTRY_CAPACITY", "many")
	_, err = LoadWithEnv(path)
	assert.NotNil(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}
