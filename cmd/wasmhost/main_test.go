package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDemoCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"caesar encrypt", []string{"demo", "caesar", "hello"}, "khoor\n"},
		{"caesar decrypt", []string{"demo", "caesar", "-d", "-k", "3", "khoor"}, "hello\n"},
		{"reverse", []string{"demo", "reverse", "stressed"}, "desserts\nHello stressed\n"},
		{"words", []string{"demo", "words"}, "four\npink\nrats\n"},
		{"async", []string{"demo", "async"}, "callback delivered 42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "demo:reverse", "greet", "--text", "Ada", "--read-text")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada\n", out)

	out, err = execute(t, "run", "demo:grow", "grow", "1")
	require.NoError(t, err)
	assert.Equal(t, "result: 1\n", out)

	out, err = execute(t, "exports", "demo:caesar")
	require.NoError(t, err)
	assert.Contains(t, out, "caesarEncrypt(i32, i32, i32) -> ()")

	_, err = execute(t, "run", "demo:grow", "grow")
	assert.Error(t, err)

	_, err = execute(t, "run", "demo:nope")
	assert.Error(t, err)

	_, err = execute(t, "demo", "caesar", "h3llo")
	assert.Error(t, err)
}

func TestEncodeArg(t *testing.T) {
	v, err := encodeArg("-1", api.ValueTypeI32)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), api.DecodeI32(v))

	v, err = encodeArg("0x10", api.ValueTypeI64)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), v)

	v, err = encodeArg("1.5", api.ValueTypeF64)
	require.NoError(t, err)
	assert.Equal(t, 1.5, api.DecodeF64(v))

	_, err = encodeArg("abc", api.ValueTypeI32)
	assert.Error(t, err)
	_, err = encodeArg("5000000000", api.ValueTypeI32)
	assert.Error(t, err)
}

func TestLetters(t *testing.T) {
	idx, err := letterIndices("Hello")
	require.NoError(t, err)
	assert.Equal(t, []int32{7, 4, 11, 11, 14}, idx)
	assert.Equal(t, "hello", letters(idx))
	assert.Equal(t, "z", letters([]int32{-1}))
}
