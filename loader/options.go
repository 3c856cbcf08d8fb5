package loader

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/readiness"
	"github.com/wippyai/wasm-host/source"
)

// Strategy names how an image was instantiated.
type Strategy string

const (
	StrategyStreaming Strategy = "streaming"
	StrategyBuffered  Strategy = "buffered"
)

// Outcome names how a load ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFallback Outcome = "fallback"
	OutcomeFailed   Outcome = "failed"
)

// Observer receives load events. metrics.Collector implements it.
type Observer interface {
	// Dependencies is called after every change to a load's run
	// dependencies with that load's pending count and the change since its
	// previous report. Deltas from concurrent loads sum to the total.
	Dependencies(pending, delta int)
	// Loaded is called once per load attempt with the final strategy.
	Loaded(strategy Strategy, outcome Outcome, elapsed time.Duration)
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger instead of the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithLocate sets the hook that maps module names to source paths.
func WithLocate(fn source.LocateFunc) Option {
	return func(ld *Loader) {
		if fn != nil {
			ld.locate = fn
		}
	}
}

// WithRunMain makes instantiation call main (or _main) with argc=0,
// argv=0 after the module initializers.
func WithRunMain(run bool) Option {
	return func(ld *Loader) {
		ld.runMain = run
	}
}

// WithMemoryLimitPages caps each instance's memory in 64KiB pages.
// 0 keeps the engine default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(ld *Loader) {
		ld.memoryLimitPages = pages
	}
}

// WithMonitor observes run dependency changes of every load.
func WithMonitor(m readiness.Monitor) Option {
	return func(ld *Loader) {
		if m != nil {
			ld.monitors = append(ld.monitors, m)
		}
	}
}

// WithObserver reports load events to o.
func WithObserver(o Observer) Option {
	return func(ld *Loader) {
		ld.observer = o
	}
}
