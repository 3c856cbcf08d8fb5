// Package config loads host settings from flags, WASMHOST_* environment
// variables and an optional config file.
package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/loader"
	"github.com/wippyai/wasm-host/source"
)

// EnvPrefix prefixes every environment variable, e.g. WASMHOST_LOG_LEVEL.
const EnvPrefix = "WASMHOST"

var (
	validate = validator.New()
	flagName = strings.NewReplacer(".", "-", "_", "-")
)

// Config is the host configuration.
type Config struct {
	Source SourceConfig `mapstructure:"source"`
	Engine EngineConfig `mapstructure:"engine"`
	Log    LogConfig    `mapstructure:"log"`
}

// SourceConfig selects where module images come from.
type SourceConfig struct {
	// BaseURL is prepended to bare module names. It may be a URL or a directory.
	BaseURL string `mapstructure:"base_url"`
	// Root resolves relative file paths.
	Root    string        `mapstructure:"root"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
	// Fallback is a directory searched by base name when a network fetch fails.
	Fallback string `mapstructure:"fallback"`
}

// EngineConfig tunes instantiation.
type EngineConfig struct {
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages" validate:"lte=65536"`
	RunMain          bool   `mapstructure:"run_main"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]any{
	"source.base_url":           "",
	"source.root":               "",
	"source.timeout":            30 * time.Second,
	"source.fallback":           "",
	"engine.memory_limit_pages": 0,
	"engine.run_main":           false,
	"log.level":                 "info",
	"log.development":           false,
}

// Load reads the configuration. file may be empty. Flags in fs named after
// a key with dots and underscores turned into dashes (e.g. --source-base-url)
// override everything else when set.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "read config "+file)
		}
	}

	if fs != nil {
		for key := range defaults {
			if f := fs.Lookup(flagName.Replace(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "bind flag "+f.Name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "config validation failed")
	}
	return nil
}

// Locate maps module names onto Source.BaseURL.
func (c *Config) Locate() source.LocateFunc {
	return source.Prefix(c.Source.BaseURL)
}

// NewSource builds the byte source described by c.
func (c *Config) NewSource() source.Source {
	auto := source.Auto{
		Client: &http.Client{Timeout: c.Source.Timeout},
		Root:   c.Source.Root,
	}
	if c.Source.Fallback != "" {
		auto.Fallback = source.FileSource{Root: c.Source.Fallback}
	}
	return auto
}

// LoaderOptions returns the loader options implied by c.
func (c *Config) LoaderOptions(logger *zap.Logger) []loader.Option {
	return []loader.Option{
		loader.WithLogger(logger),
		loader.WithLocate(c.Locate()),
		loader.WithRunMain(c.Engine.RunMain),
		loader.WithMemoryLimitPages(c.Engine.MemoryLimitPages),
	}
}

// NewLogger builds a zap logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "log level")
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
