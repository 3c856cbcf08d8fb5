package profile

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/internal/demo"
	wb "github.com/wippyai/wasm-host/internal/wasmbuild"
	"github.com/wippyai/wasm-host/loader"
	"github.com/wippyai/wasm-host/source"
)

func load(t *testing.T, image []byte, table *imports.Table) *loader.Instance {
	t.Helper()
	ctx := context.Background()
	ld := loader.New(nil)
	t.Cleanup(func() { _ = ld.Close(ctx) })
	inst, err := ld.LoadImage(ctx, image, table)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(ctx) })
	return inst
}

func TestLower(t *testing.T) {
	i32, i64, f64 := api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF64

	tests := []struct {
		name    string
		fn      string
		params  []api.ValueType
		results []api.ValueType
	}{
		{"empty", "func()", nil, nil},
		{"list and scalar", "func(values: list<s32>, key: s32)", []api.ValueType{i32, i32, i32}, nil},
		{"string result pointer", "func(name: string) -> u32", []api.ValueType{i32, i32}, []api.ValueType{i32}},
		{"wide scalars", "func(a: u64, b: f64) -> s64", []api.ValueType{i64, f64}, []api.ValueType{i64}},
		{"nested list", "func(rows: list<list<u8>>)", []api.ValueType{i32, i32}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, results, err := Lower(tt.fn)
			require.NoError(t, err)
			assert.Equal(t, tt.params, params)
			assert.Equal(t, tt.results, results)
		})
	}
}

func TestLower_Invalid(t *testing.T) {
	for _, fn := range []string{
		"",
		"fn(a: s32)",
		"func(a: s32",
		"func(a: s32) s32",
		"func() -> string",
	} {
		_, _, err := Lower(fn)
		assert.Error(t, err, fn)
	}
}

func TestCaesar(t *testing.T) {
	ctx := context.Background()
	inst := load(t, demo.Caesar(), nil)

	c, err := BindCaesar(inst)
	require.NoError(t, err)

	plain := []int32{7, 4, 11, 11, 14, 22, 14, 17, 11, 3}
	enc, err := c.Encrypt(ctx, plain, 3)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 7, 14, 14, 17, 25, 17, 20, 14, 6}, enc)

	dec, err := c.Decrypt(ctx, enc, 3)
	require.NoError(t, err)
	assert.Equal(t, plain, dec)

	m, err := inst.Marshaler()
	require.NoError(t, err)
	left, err := m.ReadInt32Array(0, uint32(len(plain)))
	require.NoError(t, err)
	assert.Equal(t, make([]int32, len(plain)), left, "staging area is cleared after use")
}

func TestReverserAndGreeter(t *testing.T) {
	ctx := context.Background()
	inst := load(t, demo.Reverse(), nil)

	r, err := BindReverser(inst)
	require.NoError(t, err)
	out, err := r.Reverse(ctx, "stressed")
	require.NoError(t, err)
	assert.Equal(t, "desserts", out)

	g, err := BindGreeter(inst)
	require.NoError(t, err)
	out, err = g.Greet(ctx, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", out)

	m, err := inst.Marshaler()
	require.NoError(t, err)
	b, err := m.ReadBytes(demo.GreetOutAt, 10)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 10), b, "greeting is cleared once read")
}

func TestGreeter_UnterminatedOutputCleared(t *testing.T) {
	const outAt = 1024
	m := wb.New().WithMemory(1, "memory").WithData(outAt, bytes.Repeat([]byte{'x'}, 300))
	m.Func("greet", []wb.ValType{wb.I32, wb.I32}, []wb.ValType{wb.I32}, nil, wb.NewCode().I32Const(outAt))
	inst := load(t, m.Encode(), nil)

	g, err := BindGreeter(inst)
	require.NoError(t, err)
	g.OutputLimit = 64

	_, err = g.Greet(context.Background(), "Ada")
	assert.ErrorIs(t, err, errors.ErrMalformedText)

	mm, err := inst.Marshaler()
	require.NoError(t, err)
	scanned, err := mm.ReadBytes(outAt, 64)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 64), scanned, "scanned output is cleared on failure")
	rest, err := mm.ReadBytes(outAt+64, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{'x'}, rest, "nothing past the limit is touched")
}

// wordleGuest exports the wordle profile: solution points at a static word,
// validate returns the guess length and guess echoes its input pointer.
func wordleGuest() []byte {
	const solutionAt = 256
	m := wb.New().WithMemory(1, "memory").WithData(solutionAt, []byte("rats\x00"))
	m.Func("solution", nil, []wb.ValType{wb.I32}, nil, wb.NewCode().I32Const(solutionAt))
	m.Func("validate", []wb.ValType{wb.I32, wb.I32}, []wb.ValType{wb.I32}, nil, wb.NewCode().LocalGet(1))
	m.Func("reset", nil, nil, nil, wb.NewCode())
	m.Func("guess", []wb.ValType{wb.I32, wb.I32}, []wb.ValType{wb.I32}, nil, wb.NewCode().LocalGet(0))
	return m.Encode()
}

func TestWordle(t *testing.T) {
	ctx := context.Background()
	inst := load(t, wordleGuest(), nil)

	w, err := BindWordle(inst)
	require.NoError(t, err)

	sol, err := w.Solution(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rats", sol)

	code, err := w.Validate(ctx, "pink")
	require.NoError(t, err)
	assert.Equal(t, int32(4), code)

	require.NoError(t, w.Reset(ctx))

	fb, err := w.Guess(ctx, "four")
	require.NoError(t, err)
	assert.Equal(t, "four", fb)

	sol, err = w.Solution(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rats", sol, "guest-owned solution survives")
}

func TestAsync(t *testing.T) {
	ctx := context.Background()
	table := imports.NewBuilder().
		Deferred("env", "get", "callback", func(context.Context) []uint64 {
			return []uint64{api.EncodeI32(42)}
		}).
		MustBuild()
	inst := load(t, demo.Async(), table)

	a, err := BindAsync(inst)
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))

	res, err := a.Call(ctx, "result")
	require.NoError(t, err)
	assert.Equal(t, int32(42), api.DecodeI32(res[0]))
}

func TestBind_Mismatch(t *testing.T) {
	inst := load(t, demo.Reverse(), nil)

	_, err := BindCaesar(inst)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindNotFound, e.Kind)

	m := wb.New().WithMemory(1, "memory")
	m.Func("greet", []wb.ValType{wb.I32}, []wb.ValType{wb.I32}, nil, wb.NewCode().LocalGet(0))
	_, err = BindGreeter(load(t, m.Encode(), nil))
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindTypeMismatch, e.Kind)
	assert.Contains(t, err.Error(), "(i32) -> i32")
}

func TestBind_NotReady(t *testing.T) {
	ctx := context.Background()
	ld := loader.New(source.DataSource{})
	defer ld.Close(ctx)

	inst := ld.LoadAsync(ctx, "data:application/wasm;base64,AA==", nil)
	defer inst.Close(ctx)
	<-inst.Gate().Done()

	_, err := BindCaesar(inst)
	assert.ErrorIs(t, err, errors.ErrNotReady)
}
