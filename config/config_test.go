package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/source"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Zero(t, cfg.Engine.MemoryLimitPages)
	assert.False(t, cfg.Engine.RunMain)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wasmhost.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
source:
  base_url: https://cdn.example.com/wasm
  timeout: 5s
engine:
  memory_limit_pages: 16
log:
  level: warn
`), 0o600))

	t.Setenv("WASMHOST_ENGINE_RUN_MAIN", "true")
	t.Setenv("WASMHOST_LOG_LEVEL", "error")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.Uint32("engine-memory-limit-pages", 0, "")
	require.NoError(t, fs.Parse([]string{"--log-level=debug"}))

	cfg, err := Load(file, fs)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level, "a set flag wins")
	assert.Equal(t, uint32(16), cfg.Engine.MemoryLimitPages, "an unset flag defers to the file")
	assert.True(t, cfg.Engine.RunMain, "env applies")
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, "https://cdn.example.com/wasm/caesar.wasm", cfg.Locate()("caesar.wasm"))
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("WASMHOST_LOG_LEVEL", "loud")
	_, err := Load("", nil)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindInvalidInput, e.Kind)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	cfg := &Config{Source: SourceConfig{Root: "/srv", Fallback: "/opt/wasm", Timeout: time.Second}}
	auto, ok := cfg.NewSource().(source.Auto)
	require.True(t, ok)
	assert.Equal(t, "/srv", auto.Root)
	assert.Equal(t, source.FileSource{Root: "/opt/wasm"}, auto.Fallback)
	assert.Equal(t, time.Second, auto.Client.Timeout)

	assert.Len(t, cfg.LoaderOptions(nil), 4)
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "debug", Development: true}}
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}
