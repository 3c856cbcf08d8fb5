package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func instantiate(t *testing.T, image []byte, host func(wazero.Runtime)) api.Module {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	if host != nil {
		host(rt)
	}
	mod, err := rt.Instantiate(ctx, image)
	require.NoError(t, err)
	return mod
}

func call(t *testing.T, mod api.Module, name string, params ...uint64) []uint64 {
	t.Helper()
	fn := mod.ExportedFunction(name)
	require.NotNil(t, fn, name)
	res, err := fn.Call(context.Background(), params...)
	require.NoError(t, err)
	return res
}

func TestCaesar(t *testing.T) {
	mod := instantiate(t, Caesar(), nil)
	mem := mod.Memory()
	for i, v := range []uint32{0, 24, 25} {
		require.True(t, mem.WriteUint32Le(uint32(4*i), v))
	}

	call(t, mod, "caesarEncrypt", 0, 3, 3)
	for i, want := range []uint32{3, 1, 2} {
		got, ok := mem.ReadUint32Le(uint32(4 * i))
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	call(t, mod, "caesarDecrypt", 0, 3, 3)
	for i, want := range []uint32{0, 24, 25} {
		got, _ := mem.ReadUint32Le(uint32(4 * i))
		assert.Equal(t, want, got)
	}
}

func TestReverse(t *testing.T) {
	mod := instantiate(t, Reverse(), nil)
	mem := mod.Memory()
	require.True(t, mem.Write(0, []byte("abc")))

	call(t, mod, "reverse", 0, 3)
	b, _ := mem.Read(0, 3)
	assert.Equal(t, "cba", string(b))

	call(t, mod, "reverse", 0, 0)
	b, _ = mem.Read(0, 3)
	assert.Equal(t, "cba", string(b), "empty input is a no-op")

	res := call(t, mod, "greet", 0, 3)
	require.Equal(t, uint64(GreetOutAt), res[0])
	b, _ = mem.Read(GreetOutAt, 10)
	assert.Equal(t, "Hello cba\x00", string(b))
}

func TestAsync(t *testing.T) {
	var calls int
	mod := instantiate(t, Async(), func(rt wazero.Runtime) {
		_, err := rt.NewHostModuleBuilder("env").
			NewFunctionBuilder().WithFunc(func() { calls++ }).Export("get").
			Instantiate(context.Background())
		require.NoError(t, err)
	})

	call(t, mod, "call")
	assert.Equal(t, 1, calls)

	call(t, mod, "callback", api.EncodeI32(-7))
	assert.Equal(t, int32(-7), api.DecodeI32(call(t, mod, "result")[0]))
}

func TestClock(t *testing.T) {
	mod := instantiate(t, Clock(), func(rt wazero.Runtime) {
		_, err := rt.NewHostModuleBuilder("env").
			NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, ptr uint32) uint32 {
			m.Memory().WriteUint32Le(ptr, 99)
			return 99
		}).Export("time").
			Instantiate(context.Background())
		require.NoError(t, err)
	})

	assert.Equal(t, uint64(0), call(t, mod, "initialized")[0], "ctors are not run by the engine")
	call(t, mod, "__wasm_call_ctors")
	assert.Equal(t, uint64(1), call(t, mod, "initialized")[0])

	assert.Equal(t, uint64(99), call(t, mod, "now")[0])
	assert.Equal(t, uint64(99), call(t, mod, "stored")[0])
}

func TestWords(t *testing.T) {
	mod := instantiate(t, Words(), nil)
	assert.Equal(t, uint64(WordsTableAt), call(t, mod, "list")[0])
	assert.Equal(t, uint64(3), call(t, mod, "count")[0])

	ptr, ok := mod.Memory().ReadUint32Le(WordsTableAt + 4)
	require.True(t, ok)
	b, _ := mod.Memory().Read(ptr, 5)
	assert.Equal(t, "pink\x00", string(b))
}

func TestGrow(t *testing.T) {
	mod := instantiate(t, Grow(), nil)
	assert.Equal(t, uint64(1), call(t, mod, "size")[0])
	assert.Equal(t, uint64(1), call(t, mod, "grow", 2)[0])
	assert.Equal(t, uint64(3), call(t, mod, "size")[0])
}
