package memory

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
)

// Epoch counts guest calls. Any call may grow memory, so views taken
// before a call are refused after it.
type Epoch struct {
	n atomic.Uint64
}

// Advance marks the start of a guest call.
func (e *Epoch) Advance() {
	e.n.Add(1)
}

// Current returns the current epoch.
func (e *Epoch) Current() uint64 {
	return e.n.Load()
}

// View is a typed window factory over linear memory as it was at creation.
// A View stops being valid when the memory size changes or, when it was
// created with an Epoch, after the next guest call.
type View struct {
	mem   wasmhost.Memory
	epoch *Epoch
	at    uint64
	size  uint32
}

// NewView snapshots mem. epoch may be nil.
func NewView(mem wasmhost.Memory, epoch *Epoch) *View {
	v := &View{mem: mem, epoch: epoch, size: mem.Size()}
	if epoch != nil {
		v.at = epoch.Current()
	}
	return v
}

// Size returns the memory size captured at creation.
func (v *View) Size() uint32 {
	return v.size
}

// Valid reports whether the view still describes the live memory.
func (v *View) Valid() bool {
	return v.check() == nil
}

func (v *View) check() error {
	if cur := v.mem.Size(); cur != v.size {
		return errors.New(errors.PhaseMarshal, errors.KindStale).
			Value(cur).
			Detail("memory resized from %d to %d bytes", v.size, cur).
			Build()
	}
	if v.epoch != nil && v.epoch.Current() != v.at {
		return errors.StaleView("guest call since view creation")
	}
	return nil
}

func (v *View) bounds(offset, count, elem uint32) error {
	length := uint64(count) * uint64(elem)
	if uint64(offset)+length > uint64(v.size) {
		return errors.MarshalOverflow(uint64(offset), length, v.size)
	}
	return nil
}

// Bytes returns a copy of n bytes at offset.
func (v *View) Bytes(offset, n uint32) ([]byte, error) {
	w, err := v.Uint8(offset, n)
	if err != nil {
		return nil, err
	}
	return w.Slice()
}

func (v *View) Uint8(offset, count uint32) (Uint8Window, error) {
	return window(v, offset, count, codecUint8)
}

func (v *View) Uint16(offset, count uint32) (Uint16Window, error) {
	return window(v, offset, count, codecUint16)
}

func (v *View) Int32(offset, count uint32) (Int32Window, error) {
	return window(v, offset, count, codecInt32)
}

func (v *View) Uint32(offset, count uint32) (Uint32Window, error) {
	return window(v, offset, count, codecUint32)
}

func (v *View) Float32(offset, count uint32) (Float32Window, error) {
	return window(v, offset, count, codecFloat32)
}

func (v *View) Float64(offset, count uint32) (Float64Window, error) {
	return window(v, offset, count, codecFloat64)
}

// Element is a value type a Window can hold.
type Element interface {
	~uint8 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

type codec[T Element] struct {
	get  func([]byte) T
	put  func([]byte, T)
	size uint32
}

var (
	codecUint8 = codec[uint8]{
		size: 1,
		get:  func(b []byte) uint8 { return b[0] },
		put:  func(b []byte, v uint8) { b[0] = v },
	}
	codecUint16 = codec[uint16]{
		size: 2,
		get:  binary.LittleEndian.Uint16,
		put:  binary.LittleEndian.PutUint16,
	}
	codecInt32 = codec[int32]{
		size: 4,
		get:  func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
		put:  func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
	}
	codecUint32 = codec[uint32]{
		size: 4,
		get:  binary.LittleEndian.Uint32,
		put:  binary.LittleEndian.PutUint32,
	}
	codecFloat32 = codec[float32]{
		size: 4,
		get:  func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) },
		put:  func(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) },
	}
	codecFloat64 = codec[float64]{
		size: 8,
		get:  func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) },
		put:  func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) },
	}
)

// Window is a little-endian typed array over a span of linear memory.
type Window[T Element] struct {
	view   *View
	codec  codec[T]
	offset uint32
	count  uint32
}

type (
	Uint8Window   = Window[uint8]
	Uint16Window  = Window[uint16]
	Int32Window   = Window[int32]
	Uint32Window  = Window[uint32]
	Float32Window = Window[float32]
	Float64Window = Window[float64]
)

func window[T Element](v *View, offset, count uint32, c codec[T]) (Window[T], error) {
	if err := v.check(); err != nil {
		return Window[T]{}, err
	}
	if err := v.bounds(offset, count, c.size); err != nil {
		return Window[T]{}, err
	}
	return Window[T]{view: v, codec: c, offset: offset, count: count}, nil
}

// Len returns the number of elements.
func (w Window[T]) Len() int {
	return int(w.count)
}

// Offset returns the byte offset of the first element.
func (w Window[T]) Offset() uint32 {
	return w.offset
}

func (w Window[T]) elem(i int) (uint32, error) {
	if err := w.view.check(); err != nil {
		return 0, err
	}
	if i < 0 || uint32(i) >= w.count {
		return 0, errors.New(errors.PhaseMarshal, errors.KindOverflow).
			Value(i).
			Detail("index %d out of range [0:%d)", i, w.count).
			Build()
	}
	return w.offset + uint32(i)*w.codec.size, nil
}

// At returns element i.
func (w Window[T]) At(i int) (T, error) {
	var zero T
	off, err := w.elem(i)
	if err != nil {
		return zero, err
	}
	b, ok := w.view.mem.Read(off, w.codec.size)
	if !ok {
		return zero, errors.MarshalOverflow(uint64(off), uint64(w.codec.size), w.view.mem.Size())
	}
	return w.codec.get(b), nil
}

// Set stores element i.
func (w Window[T]) Set(i int, val T) error {
	off, err := w.elem(i)
	if err != nil {
		return err
	}
	b := make([]byte, w.codec.size)
	w.codec.put(b, val)
	if !w.view.mem.Write(off, b) {
		return errors.MarshalOverflow(uint64(off), uint64(w.codec.size), w.view.mem.Size())
	}
	return nil
}

// Slice copies the whole window out of memory.
func (w Window[T]) Slice() ([]T, error) {
	if err := w.view.check(); err != nil {
		return nil, err
	}
	n := w.count * w.codec.size
	b, ok := w.view.mem.Read(w.offset, n)
	if !ok {
		return nil, errors.MarshalOverflow(uint64(w.offset), uint64(n), w.view.mem.Size())
	}
	out := make([]T, w.count)
	for i := range out {
		out[i] = w.codec.get(b[uint32(i)*w.codec.size:])
	}
	return out, nil
}

// Fill copies values into the window starting at element 0.
func (w Window[T]) Fill(values []T) error {
	if err := w.view.check(); err != nil {
		return err
	}
	if uint32(len(values)) > w.count {
		return errors.MarshalOverflow(uint64(w.offset), uint64(len(values))*uint64(w.codec.size),
			w.offset+w.count*w.codec.size)
	}
	b := make([]byte, uint32(len(values))*w.codec.size)
	for i, val := range values {
		w.codec.put(b[uint32(i)*w.codec.size:], val)
	}
	if !w.view.mem.Write(w.offset, b) {
		return errors.MarshalOverflow(uint64(w.offset), uint64(len(b)), w.view.mem.Size())
	}
	return nil
}
