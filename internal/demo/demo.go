// Package demo builds the small guest images used by the CLI and tests.
package demo

import (
	wb "github.com/wippyai/wasm-host/internal/wasmbuild"
)

// Fixed addresses inside the demo guests.
const (
	GreetPrefixAt = 4096
	GreetOutAt    = 8192
	ClockSlot     = 16
	CtorFlagAt    = 32
	AsyncResultAt = 64
	WordsTableAt  = 512
	WordsDataAt   = 1024
)

var i32 = []wb.ValType{wb.I32}

func i32x(n int) []wb.ValType {
	out := make([]wb.ValType, n)
	for i := range out {
		out[i] = wb.I32
	}
	return out
}

// Caesar exports caesarEncrypt(ptr, len, key) and caesarDecrypt(ptr, len, key)
// over an array of len int32 values in 0..25 stored at ptr.
func Caesar() []byte {
	m := wb.New().WithMemory(1, "memory")

	// params: 0 ptr, 1 len, 2 key; locals: 3 i, 4 addr
	encrypt := wb.NewCode().
		Block().Loop().
		LocalGet(3).LocalGet(1).I32GeS().BrIf(1).
		LocalGet(0).LocalGet(3).I32Const(2).I32Shl().I32Add().LocalSet(4).
		LocalGet(4).
		LocalGet(4).I32Load(0).
		LocalGet(2).I32Add().
		I32Const(26).I32RemS().
		I32Store(0).
		LocalGet(3).I32Const(1).I32Add().LocalSet(3).
		Br(0).
		End().End()
	encIdx := m.Func("caesarEncrypt", i32x(3), nil, i32x(2), encrypt)

	// decrypt is encrypt with the complementary key
	decrypt := wb.NewCode().
		LocalGet(0).LocalGet(1).
		I32Const(26).LocalGet(2).I32Const(26).I32RemS().I32Sub().
		Call(encIdx)
	m.Func("caesarDecrypt", i32x(3), nil, nil, decrypt)

	return m.Encode()
}

// Reverse exports reverse(ptr, len), reversing bytes in place, and
// greet(ptr, len) returning a NUL-terminated "Hello <text>" at GreetOutAt.
func Reverse() []byte {
	m := wb.New().WithMemory(1, "memory").WithData(GreetPrefixAt, []byte("Hello "))

	// params: 0 ptr, 1 len; locals: 2 i, 3 j, 4 tmp
	reverse := wb.NewCode().
		LocalGet(1).I32Const(1).I32Sub().LocalSet(3).
		Block().Loop().
		LocalGet(2).LocalGet(3).I32GeS().BrIf(1).
		LocalGet(0).LocalGet(2).I32Add().I32Load8U(0).LocalSet(4).
		LocalGet(0).LocalGet(2).I32Add().
		LocalGet(0).LocalGet(3).I32Add().I32Load8U(0).
		I32Store8(0).
		LocalGet(0).LocalGet(3).I32Add().LocalGet(4).I32Store8(0).
		LocalGet(2).I32Const(1).I32Add().LocalSet(2).
		LocalGet(3).I32Const(1).I32Sub().LocalSet(3).
		Br(0).
		End().End()
	m.Func("reverse", i32x(2), nil, i32x(3), reverse)

	copyIdx := m.Func("", i32x(3), nil, i32, copyLoop())

	greet := wb.NewCode().
		I32Const(GreetOutAt).I32Const(GreetPrefixAt).I32Const(6).Call(copyIdx).
		I32Const(GreetOutAt + 6).LocalGet(0).LocalGet(1).Call(copyIdx).
		I32Const(GreetOutAt + 6).LocalGet(1).I32Add().I32Const(0).I32Store8(0).
		I32Const(GreetOutAt)
	m.Func("greet", i32x(2), i32, nil, greet)

	return m.Encode()
}

// Async imports env.get and exports call, callback(v) and result. call
// invokes env.get; callback stores v at AsyncResultAt; result loads it.
func Async() []byte {
	m := wb.New()
	get := m.ImportFunc("env", "get", nil, nil)
	m.WithMemory(1, "memory")

	m.Func("call", nil, nil, nil, wb.NewCode().Call(get))
	m.Func("callback", i32, nil, nil,
		wb.NewCode().I32Const(AsyncResultAt).LocalGet(0).I32Store(0))
	m.Func("result", nil, i32, nil,
		wb.NewCode().I32Const(AsyncResultAt).I32Load(0))

	return m.Encode()
}

// Clock imports env.time and exports now, which calls time(ClockSlot) and
// returns its result, plus __wasm_call_ctors setting a flag read by
// initialized.
func Clock() []byte {
	m := wb.New()
	tm := m.ImportFunc("env", "time", i32, i32)
	m.WithMemory(1, "memory")

	m.Func("now", nil, i32, nil, wb.NewCode().I32Const(ClockSlot).Call(tm))
	m.Func("stored", nil, i32, nil, wb.NewCode().I32Const(ClockSlot).I32Load(0))
	m.Func("__wasm_call_ctors", nil, nil, nil,
		wb.NewCode().I32Const(CtorFlagAt).I32Const(1).I32Store(0))
	m.Func("initialized", nil, i32, nil, wb.NewCode().I32Const(CtorFlagAt).I32Load(0))

	return m.Encode()
}

// Words exports list, returning a pointer to a table of three char* entries.
func Words() []byte {
	words := []string{"four", "pink", "rats"}

	var data []byte
	table := make([]byte, 0, 4*len(words))
	for _, w := range words {
		ptr := uint32(WordsDataAt + len(data))
		table = append(table, byte(ptr), byte(ptr>>8), byte(ptr>>16), byte(ptr>>24))
		data = append(data, w...)
		data = append(data, 0)
	}

	m := wb.New().WithMemory(1, "memory").
		WithData(WordsTableAt, table).
		WithData(WordsDataAt, data)
	m.Func("list", nil, i32, nil, wb.NewCode().I32Const(WordsTableAt))
	m.Func("count", nil, i32, nil, wb.NewCode().I32Const(int32(len(words))))

	return m.Encode()
}

// Grow exports grow(pages) returning the previous page count, and size.
func Grow() []byte {
	m := wb.New().WithMemory(1, "memory")
	m.Func("grow", i32, i32, nil, wb.NewCode().LocalGet(0).MemoryGrow())
	m.Func("size", nil, i32, nil, wb.NewCode().MemorySize())
	return m.Encode()
}

// copyLoop copies n bytes from src to dst. params: 0 dst, 1 src, 2 n; local 3 i.
func copyLoop() *wb.Code {
	return wb.NewCode().
		Block().Loop().
		LocalGet(3).LocalGet(2).I32GeU().BrIf(1).
		LocalGet(0).LocalGet(3).I32Add().
		LocalGet(1).LocalGet(3).I32Add().I32Load8U(0).
		I32Store8(0).
		LocalGet(3).I32Const(1).I32Add().LocalSet(3).
		Br(0).
		End().End()
}
