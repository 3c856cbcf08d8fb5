package memory

import (
	stderrors "errors"
	"sync"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
)

// Arena is a bump allocator over a fixed span [base, limit) of linear
// memory reserved for host-to-guest buffers. Buffers live inside a Scope;
// releasing a buffer zero-fills it and closing the scope rewinds the arena.
//
// Scopes rewind in LIFO order. A scope that closes while a later scope is
// still open keeps its span reserved until every later scope has closed, so
// open buffers never overlap.
type Arena struct {
	m     *Marshaler
	open  []*Scope
	base  uint32
	limit uint32
	next  uint32
	mu    sync.Mutex
}

// NewArena reserves [base, limit) of the marshaler's memory.
func NewArena(m *Marshaler, base, limit uint32) (*Arena, error) {
	if limit < base {
		return nil, errors.InvalidInput(errors.PhaseMarshal, "arena limit below base")
	}
	if err := m.fits(base, uint64(limit-base)); err != nil {
		return nil, err
	}
	return &Arena{m: m, base: base, limit: limit, next: base}, nil
}

// Used returns the number of bytes currently allocated.
func (a *Arena) Used() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next - a.base
}

// Scope runs fn with a fresh scope. Every buffer acquired in fn is released
// (zero-filled) when fn returns, and the arena rewinds past the scope once
// no later scope is open.
func (a *Arena) Scope(fn func(*Scope) error) error {
	s := &Scope{arena: a}
	a.mu.Lock()
	s.mark = a.next
	a.open = append(a.open, s)
	a.mu.Unlock()

	err := fn(s)
	relErr := s.close()
	a.rewind()

	if err != nil {
		return stderrors.Join(err, relErr)
	}
	return relErr
}

// rewind pops closed scopes off the top of the open stack.
func (a *Arena) rewind() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.open) > 0 {
		top := a.open[len(a.open)-1]
		if !top.isClosed() {
			return
		}
		a.next = top.mark
		a.open = a.open[:len(a.open)-1]
	}
}

func (a *Arena) alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseMarshal, "alignment must be a power of two")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	start := (uint64(a.next) + uint64(align) - 1) &^ (uint64(align) - 1)
	end := start + uint64(size)
	if end > uint64(a.limit) {
		return 0, errors.AllocationFailed(errors.PhaseMarshal, size, align)
	}
	a.next = uint32(end)
	return uint32(start), nil
}

// Scope tracks the buffers acquired during one Arena.Scope call.
type Scope struct {
	arena  *Arena
	bufs   []*Buffer
	mu     sync.Mutex
	mark   uint32
	closed bool
}

func (s *Scope) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Alloc reserves size bytes aligned to align.
func (s *Scope) Alloc(size, align uint32) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.InvalidInput(errors.PhaseMarshal, "scope closed")
	}
	off, err := s.arena.alloc(size, align)
	if err != nil {
		return nil, err
	}
	b := &Buffer{m: s.arena.m, region: wasmhost.Region{Offset: off, Length: size}}
	s.bufs = append(s.bufs, b)
	return b, nil
}

// Text allocates and writes NUL-terminated text.
func (s *Scope) Text(text string) (*Buffer, error) {
	b, err := s.Alloc(uint32(len(text))+1, 1)
	if err != nil {
		return nil, err
	}
	region, err := s.arena.m.WriteText(b.region.Offset, text)
	if err != nil {
		return nil, err
	}
	b.region = region
	return b, nil
}

// Int32s allocates and writes an int32 array.
func (s *Scope) Int32s(values []int32) (*Buffer, error) {
	b, err := s.Alloc(uint32(4*len(values)), 4)
	if err != nil {
		return nil, err
	}
	if _, err := s.arena.m.WriteInt32Array(values, b.region.Offset); err != nil {
		return nil, err
	}
	return b, nil
}

// Bytes allocates and writes raw bytes.
func (s *Scope) Bytes(data []byte) (*Buffer, error) {
	b, err := s.Alloc(uint32(len(data)), 1)
	if err != nil {
		return nil, err
	}
	if _, err := s.arena.m.WriteBytes(b.region.Offset, data); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Scope) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var errs []error
	for _, b := range s.bufs {
		if err := b.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	s.bufs = nil
	return stderrors.Join(errs...)
}

// Buffer is a span of arena memory owned by a scope.
type Buffer struct {
	m        *Marshaler
	region   wasmhost.Region
	released bool
}

// Region returns the span the buffer occupies.
func (b *Buffer) Region() wasmhost.Region {
	return b.region
}

// Offset returns the guest address of the buffer.
func (b *Buffer) Offset() uint32 {
	return b.region.Offset
}

// Params returns (offset, length) for passing to a guest export.
func (b *Buffer) Params() []uint64 {
	return b.region.Params()
}

// Release zero-fills the buffer. Calling it again is a no-op.
func (b *Buffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	return b.m.Zero(b.region)
}
