// Command wasmhost loads wasm modules and calls their exports.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/config"
	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/internal/demo"
	"github.com/wippyai/wasm-host/loader"
	"github.com/wippyai/wasm-host/metrics"
)

// demoPrefix selects a built-in demo image, e.g. demo:caesar.
const demoPrefix = "demo:"

var demoImages = map[string]func() []byte{
	"caesar":  demo.Caesar,
	"reverse": demo.Reverse,
	"async":   demo.Async,
	"clock":   demo.Clock,
	"words":   demo.Words,
	"grow":    demo.Grow,
}

// env holds what every subcommand needs once flags are parsed.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	loader *loader.Loader
	reg    *prometheus.Registry
}

type rootFlags struct {
	configFile  string
	metricsAddr string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags rootFlags
	var e env

	root := &cobra.Command{
		Use:           "wasmhost",
		Short:         "Load wasm modules and call their exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			loader.SetLogger(logger)
			imports.SetLogger(logger)

			e.cfg = cfg
			e.logger = logger
			e.reg = prometheus.NewRegistry()
			collector := metrics.New("wasmhost")
			if err := collector.Register(e.reg); err != nil {
				return err
			}
			opts := append(cfg.LoaderOptions(logger), loader.WithObserver(collector))
			e.loader = loader.New(cfg.NewSource(), opts...)

			if flags.metricsAddr != "" {
				serveMetrics(flags.metricsAddr, e.reg, logger)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if e.loader != nil {
				_ = e.loader.Close(cmd.Context())
			}
			if e.logger != nil {
				_ = e.logger.Sync()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.Bool("log-development", false, "human readable development logging")
	pf.String("source-base-url", "", "URL or directory prepended to bare module names")
	pf.String("source-root", "", "root for relative file paths")
	pf.String("source-fallback", "", "directory searched when a network fetch fails")
	pf.Duration("source-timeout", 30*time.Second, "network fetch timeout")
	pf.Uint32("engine-memory-limit-pages", 0, "per-instance memory cap in 64KiB pages")
	pf.Bool("engine-run-main", false, "call main after module initializers")

	root.AddCommand(newRunCommand(&e), newExportsCommand(&e), newDemoCommand(&e))
	return root
}

// load resolves name to an instance. demo:<name> loads a built-in image.
func (e *env) load(ctx context.Context, name string) (*loader.Instance, error) {
	table := hostTable()
	if image, ok := strings.CutPrefix(name, demoPrefix); ok {
		build, ok := demoImages[image]
		if !ok {
			return nil, fmt.Errorf("unknown demo module %q", image)
		}
		return e.loader.LoadImage(ctx, build(), table)
	}
	return e.loader.Load(ctx, name, table)
}

// hostTable provides the imports the demo guests use. Modules that import
// none of them still load; unused host functions are only logged.
func hostTable() *imports.Table {
	return imports.NewBuilder().
		Clock("env", time.Now).
		Deferred("env", "get", "callback", func(context.Context) []uint64 {
			return []uint64{42}
		}).
		MustBuild()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}
