package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-host/internal/demo"
	"github.com/wippyai/wasm-host/loader"
	"github.com/wippyai/wasm-host/source"
)

func TestCollector_Loads(t *testing.T) {
	ctx := context.Background()
	c := New("wasmhost")
	ld := loader.New(source.DataSource{}, loader.WithObserver(c))
	defer ld.Close(ctx)

	inst, err := ld.LoadImage(ctx, demo.Caesar(), nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = ld.LoadImage(ctx, []byte("not wasm"), nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.loads.WithLabelValues("buffered", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loads.WithLabelValues("buffered", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.pending))
	assert.Equal(t, 1, testutil.CollectAndCount(c, "wasmhost_module_load_duration_seconds"))
}

func TestCollector_Dependencies(t *testing.T) {
	c := New("")
	// Two loads in flight: each reports its own count of one.
	c.Dependencies(1, 1)
	c.Dependencies(1, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.pending))

	// The first finishing must not hide the second.
	c.Dependencies(0, -1)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pending))
	c.Dependencies(0, -1)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.pending))
}

func TestCollector_ConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	c := New("")
	release := make(chan struct{})
	ld := loader.New(gatedSource{release}, loader.WithObserver(c))
	defer ld.Close(ctx)

	a := ld.LoadAsync(ctx, "a.wasm", nil)
	defer a.Close(ctx)
	b := ld.LoadAsync(ctx, "b.wasm", nil)
	defer b.Close(ctx)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(c.pending) == 2
	}, time.Second, 5*time.Millisecond, "both loads count")

	close(release)
	require.NoError(t, a.Gate().Wait(ctx))
	require.NoError(t, b.Gate().Wait(ctx))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.pending))
}

type gatedSource struct{ release chan struct{} }

func (s gatedSource) Fetch(ctx context.Context, _ string) ([]byte, error) {
	select {
	case <-s.release:
		return demo.Caesar(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCollector_Register(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := New("wasmhost")
	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg), "double registration is refused")

	c.Loaded(loader.StrategyStreaming, loader.OutcomeFallback, 3*time.Millisecond)
	n, err := testutil.GatherAndCount(reg, "wasmhost_module_loads_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
