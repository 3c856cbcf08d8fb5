package profile

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/memory"
)

// Declared profiles.
var (
	CaesarProfile = Profile{
		Name: "caesar",
		Funcs: []Func{
			{Name: "caesarEncrypt", WIT: "func(values: list<s32>, key: s32)"},
			{Name: "caesarDecrypt", WIT: "func(values: list<s32>, key: s32)"},
		},
	}
	ReverserProfile = Profile{
		Name:  "reverser",
		Funcs: []Func{{Name: "reverse", WIT: "func(text: string)"}},
	}
	GreeterProfile = Profile{
		Name:  "greeter",
		Funcs: []Func{{Name: "greet", WIT: "func(name: string) -> u32"}},
	}
	WordleProfile = Profile{
		Name: "wordle",
		Funcs: []Func{
			{Name: "solution", WIT: "func() -> u32"},
			{Name: "validate", WIT: "func(word: string) -> s32"},
			{Name: "reset", WIT: "func()"},
			{Name: "guess", WIT: "func(word: string) -> u32"},
		},
	}
	AsyncProfile = Profile{
		Name: "async",
		Funcs: []Func{
			{Name: "call", WIT: "func()"},
			{Name: "callback", WIT: "func(value: s32)"},
		},
	}
)

// Caesar shifts arrays of letter indices (0..25) in guest memory.
type Caesar struct {
	*Bound
	// Offset is where the array is staged. Defaults to 0.
	Offset uint32
}

// BindCaesar binds the caesar profile.
func BindCaesar(t Target) (*Caesar, error) {
	b, err := CaesarProfile.Bind(t)
	if err != nil {
		return nil, err
	}
	return &Caesar{Bound: b}, nil
}

// Encrypt returns values shifted forward by key.
func (c *Caesar) Encrypt(ctx context.Context, values []int32, key int32) ([]int32, error) {
	return c.shift(ctx, "caesarEncrypt", values, key)
}

// Decrypt returns values shifted back by key.
func (c *Caesar) Decrypt(ctx context.Context, values []int32, key int32) ([]int32, error) {
	return c.shift(ctx, "caesarDecrypt", values, key)
}

func (c *Caesar) shift(ctx context.Context, export string, values []int32, key int32) (out []int32, err error) {
	region, err := c.Marshaler.WriteInt32Array(values, c.Offset)
	if err != nil {
		return nil, err
	}
	defer c.zero(region, &err)

	if _, err := c.Call(ctx, export, uint64(region.Offset), uint64(len(values)), api.EncodeI32(key)); err != nil {
		return nil, err
	}
	return c.Marshaler.ReadInt32Array(region.Offset, uint32(len(values)))
}

// Reverser reverses text in place in guest memory.
type Reverser struct {
	*Bound
	Offset uint32
}

// BindReverser binds the reverser profile.
func BindReverser(t Target) (*Reverser, error) {
	b, err := ReverserProfile.Bind(t)
	if err != nil {
		return nil, err
	}
	return &Reverser{Bound: b}, nil
}

// Reverse returns text with its bytes reversed.
func (r *Reverser) Reverse(ctx context.Context, text string) (out string, err error) {
	region, err := r.Marshaler.WriteText(r.Offset, text)
	if err != nil {
		return "", err
	}
	defer r.zero(region, &err)

	if _, err := r.Call(ctx, "reverse", region.Params()...); err != nil {
		return "", err
	}
	return r.Marshaler.ReadText(region.Offset, region.Extent())
}

// Greeter asks the guest to build a greeting.
type Greeter struct {
	*Bound
	Offset uint32
}

// BindGreeter binds the greeter profile.
func BindGreeter(t Target) (*Greeter, error) {
	b, err := GreeterProfile.Bind(t)
	if err != nil {
		return nil, err
	}
	return &Greeter{Bound: b}, nil
}

// Greet returns the guest's greeting for name.
func (g *Greeter) Greet(ctx context.Context, name string) (out string, err error) {
	in, err := g.Marshaler.WriteText(g.Offset, name)
	if err != nil {
		return "", err
	}
	defer g.zero(in, &err)

	res, err := g.Call(ctx, "greet", in.Params()...)
	if err != nil {
		return "", err
	}
	return g.readOwned(api.DecodeU32(res[0]), &err)
}

// Wordle drives a word game guest.
type Wordle struct {
	*Bound
	Offset uint32
}

// BindWordle binds the wordle profile.
func BindWordle(t Target) (*Wordle, error) {
	b, err := WordleProfile.Bind(t)
	if err != nil {
		return nil, err
	}
	return &Wordle{Bound: b}, nil
}

// Solution returns the current secret word. The guest owns the storage so
// it is left in place.
func (w *Wordle) Solution(ctx context.Context) (string, error) {
	res, err := w.Call(ctx, "solution")
	if err != nil {
		return "", err
	}
	return w.Marshaler.ReadText(api.DecodeU32(res[0]), 0)
}

// Validate returns the guest's verdict code for word.
func (w *Wordle) Validate(ctx context.Context, word string) (code int32, err error) {
	in, err := w.Marshaler.WriteText(w.Offset, word)
	if err != nil {
		return 0, err
	}
	defer w.zero(in, &err)

	res, err := w.Call(ctx, "validate", in.Params()...)
	if err != nil {
		return 0, err
	}
	return api.DecodeI32(res[0]), nil
}

// Reset starts a new game.
func (w *Wordle) Reset(ctx context.Context) error {
	_, err := w.Call(ctx, "reset")
	return err
}

// Guess returns the guest's per-letter feedback for word.
func (w *Wordle) Guess(ctx context.Context, word string) (out string, err error) {
	in, err := w.Marshaler.WriteText(w.Offset, word)
	if err != nil {
		return "", err
	}
	defer w.zero(in, &err)

	res, err := w.Call(ctx, "guess", in.Params()...)
	if err != nil {
		return "", err
	}
	return w.readOwned(api.DecodeU32(res[0]), &err)
}

// Async triggers a guest call whose result arrives through a deferred
// import completion.
type Async struct {
	*Bound
}

// BindAsync binds the async profile.
func BindAsync(t Target) (*Async, error) {
	b, err := AsyncProfile.Bind(t)
	if err != nil {
		return nil, err
	}
	return &Async{Bound: b}, nil
}

// Run calls the guest's call export. Completions queued during the call
// have run when Run returns.
func (a *Async) Run(ctx context.Context) error {
	_, err := a.Call(ctx, "call")
	return err
}

// zero clears region after use and reports a failure through err when the
// call itself succeeded.
func (b *Bound) zero(region wasmhost.Region, err *error) {
	if zerr := b.Marshaler.Zero(region); zerr != nil && *err == nil {
		*err = zerr
	}
}

// readOwned reads guest-written text at ptr and clears it. When no
// terminator is found within the output limit the scanned bytes are
// cleared anyway.
func (b *Bound) readOwned(ptr uint32, err *error) (string, error) {
	limit := b.OutputLimit
	if limit == 0 {
		limit = memory.DefaultTextLimit
	}
	s, rerr := b.Marshaler.ReadText(ptr, limit)
	if rerr != nil {
		if size := b.Marshaler.Size(); ptr < size {
			_ = b.Marshaler.Zero(wasmhost.Region{Offset: ptr, Length: min(limit, size-ptr)})
		}
		return "", rerr
	}
	b.zero(wasmhost.Region{Offset: ptr, Length: uint32(len(s)), Terminated: true}, err)
	return s, *err
}
