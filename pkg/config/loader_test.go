package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/pkg/config"
)

type parseConfig struct {
	Name    string        `env:"CFG_TEST_NAME" envDefault:"notifier"`
	Timeout time.Duration `env:"CFG_TEST_TIMEOUT" envDefault:"10s"`
	Origins []string      `env:"CFG_TEST_ORIGINS" envSeparator:","`
}

type requiredConfig struct {
	Secret string `env:"CFG_TEST_SECRET,required"`
}

type validatedConfig struct {
	Min int `env:"CFG_TEST_MIN" envDefault:"1"`
	Max int `env:"CFG_TEST_MAX" envDefault:"10"`
}

func (c validatedConfig) Validate() error {
	if c.Min > c.Max {
		return errors.New("min must not exceed max")
	}
	return nil
}

type cachedConfig struct {
	Value string `env:"CFG_TEST_CACHED" envDefault:"default"`
}

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg parseConfig
		require.NoError(t, config.Parse(&cfg))
		assert.Equal(t, "notifier", cfg.Name)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
		assert.Empty(t, cfg.Origins)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("CFG_TEST_NAME", "gateway")
		t.Setenv("CFG_TEST_TIMEOUT", "3s")
		t.Setenv("CFG_TEST_ORIGINS", "https://a.edu,https://b.edu")

		var cfg parseConfig
		require.NoError(t, config.Parse(&cfg))
		assert.Equal(t, "gateway", cfg.Name)
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, []string{"https://a.edu", "https://b.edu"}, cfg.Origins)
	})

	t.Run("missing required", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Parse(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Setenv("CFG_TEST_MIN", "20")
		var cfg validatedConfig
		err := config.Parse(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Parse[parseConfig](nil), config.ErrNilPointer)
	})
}

func TestLoadCachesPerType(t *testing.T) {
	t.Setenv("CFG_TEST_CACHED", "first")

	var a cachedConfig
	require.NoError(t, config.Load(&a))
	assert.Equal(t, "first", a.Value)

	t.Setenv("CFG_TEST_CACHED", "second")
	var b cachedConfig
	require.NoError(t, config.Load(&b))
	assert.Equal(t, "first", b.Value)
}

func TestMustLoadPanics(t *testing.T) {
	type mustConfig struct {
		Secret string `env:"CFG_TEST_MUST_SECRET,required"`
	}
	var cfg mustConfig
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}
