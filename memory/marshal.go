package memory

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
)

// DefaultTextLimit bounds ReadText scans when no limit is given.
const DefaultTextLimit = 256

// Marshaler copies values between host memory and guest linear memory.
// Every operation re-reads the memory size, so it is safe across growth.
type Marshaler struct {
	mem wasmhost.Memory
}

// NewMarshaler returns a Marshaler over mem.
func NewMarshaler(mem wasmhost.Memory) *Marshaler {
	return &Marshaler{mem: mem}
}

// Size returns the current linear memory size in bytes.
func (m *Marshaler) Size() uint32 {
	return m.mem.Size()
}

func (m *Marshaler) fits(offset uint32, length uint64) error {
	size := m.mem.Size()
	if uint64(offset)+length > uint64(size) {
		return errors.MarshalOverflow(uint64(offset), length, size)
	}
	return nil
}

func (m *Marshaler) write(offset uint32, data []byte) error {
	if err := m.fits(offset, uint64(len(data))); err != nil {
		return err
	}
	if !m.mem.Write(offset, data) {
		return errors.MarshalOverflow(uint64(offset), uint64(len(data)), m.mem.Size())
	}
	return nil
}

func (m *Marshaler) read(offset, n uint32) ([]byte, error) {
	if err := m.fits(offset, uint64(n)); err != nil {
		return nil, err
	}
	b, ok := m.mem.Read(offset, n)
	if !ok {
		return nil, errors.MarshalOverflow(uint64(offset), uint64(n), m.mem.Size())
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// WriteText stores text followed by a NUL terminator at offset.
// Nothing is written when the region does not fit.
func (m *Marshaler) WriteText(offset uint32, text string) (wasmhost.Region, error) {
	if !utf8.ValidString(text) {
		return wasmhost.Region{}, errors.InvalidUTF8(errors.PhaseMarshal, offset, []byte(text))
	}
	buf := make([]byte, len(text)+1)
	copy(buf, text)
	if err := m.write(offset, buf); err != nil {
		return wasmhost.Region{}, err
	}
	return wasmhost.Region{Offset: offset, Length: uint32(len(text)), Terminated: true}, nil
}

// ReadText returns the NUL-terminated text at offset, scanning at most
// maxLen bytes (DefaultTextLimit when zero). A missing terminator is an error.
func (m *Marshaler) ReadText(offset, maxLen uint32) (string, error) {
	b, terminated, limit, err := m.scan(offset, maxLen)
	if err != nil {
		return "", err
	}
	if !terminated {
		return "", errors.MalformedText(offset, limit)
	}
	return text(offset, b)
}

// ReadTextUnterminated is ReadText that returns the bounded bytes when no
// terminator is found.
func (m *Marshaler) ReadTextUnterminated(offset, maxLen uint32) (string, error) {
	b, _, _, err := m.scan(offset, maxLen)
	if err != nil {
		return "", err
	}
	return text(offset, b)
}

func (m *Marshaler) scan(offset, maxLen uint32) ([]byte, bool, uint32, error) {
	limit := maxLen
	if limit == 0 {
		limit = DefaultTextLimit
	}
	size := m.mem.Size()
	if offset >= size {
		return nil, false, limit, errors.MarshalOverflow(uint64(offset), 1, size)
	}
	n := limit
	if avail := size - offset; avail < n {
		n = avail
	}
	b, ok := m.mem.Read(offset, n)
	if !ok {
		return nil, false, limit, errors.MarshalOverflow(uint64(offset), uint64(n), size)
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i], true, limit, nil
	}
	return b, false, limit, nil
}

func text(offset uint32, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseMarshal, offset, b)
	}
	return string(b), nil
}

// Zero fills region, terminator included, with zero bytes.
func (m *Marshaler) Zero(region wasmhost.Region) error {
	n := region.Extent()
	if n == 0 {
		return nil
	}
	return m.write(region.Offset, make([]byte, n))
}

// WriteInt32Array stores values contiguously at offset, little-endian.
// The returned region's Length is in bytes.
func (m *Marshaler) WriteInt32Array(values []int32, offset uint32) (wasmhost.Region, error) {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	if err := m.write(offset, buf); err != nil {
		return wasmhost.Region{}, err
	}
	return wasmhost.Region{Offset: offset, Length: uint32(len(buf))}, nil
}

// ReadInt32Array reads count int32 values at offset.
func (m *Marshaler) ReadInt32Array(offset, count uint32) ([]int32, error) {
	if err := m.fits(offset, 4*uint64(count)); err != nil {
		return nil, err
	}
	b, err := m.read(offset, 4*count)
	if err != nil {
		return nil, err
	}
	out := make([]int32, count)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// WriteBytes stores data at offset.
func (m *Marshaler) WriteBytes(offset uint32, data []byte) (wasmhost.Region, error) {
	if err := m.write(offset, data); err != nil {
		return wasmhost.Region{}, err
	}
	return wasmhost.Region{Offset: offset, Length: uint32(len(data))}, nil
}

// ReadBytes returns a copy of n bytes at offset.
func (m *Marshaler) ReadBytes(offset, n uint32) ([]byte, error) {
	return m.read(offset, n)
}

// ReadRegion returns a copy of the region's payload.
func (m *Marshaler) ReadRegion(region wasmhost.Region) ([]byte, error) {
	return m.read(region.Offset, region.Length)
}

// WriteMsgpack encodes v with msgpack and stores it at offset.
func (m *Marshaler) WriteMsgpack(offset uint32, v any) (wasmhost.Region, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return wasmhost.Region{}, errors.Wrap(errors.PhaseMarshal, errors.KindInvalidData, err, "encode msgpack")
	}
	return m.WriteBytes(offset, data)
}

// ReadMsgpack decodes the msgpack payload in region into v.
func (m *Marshaler) ReadMsgpack(region wasmhost.Region, v any) error {
	data, err := m.ReadRegion(region)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.PhaseMarshal, errors.KindInvalidData, err, "decode msgpack")
	}
	return nil
}

// WriteProto encodes msg in protobuf wire format and stores it at offset.
func (m *Marshaler) WriteProto(offset uint32, msg proto.Message) (wasmhost.Region, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return wasmhost.Region{}, errors.Wrap(errors.PhaseMarshal, errors.KindInvalidData, err, "encode protobuf")
	}
	return m.WriteBytes(offset, data)
}

// ReadProto decodes the protobuf payload in region into msg.
func (m *Marshaler) ReadProto(region wasmhost.Region, msg proto.Message) error {
	data, err := m.ReadRegion(region)
	if err != nil {
		return err
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return errors.Wrap(errors.PhaseMarshal, errors.KindInvalidData, err, "decode protobuf")
	}
	return nil
}

// ReadStringTable reads count NUL-terminated strings through the pointer
// table at ptr (a char** in the guest).
func (m *Marshaler) ReadStringTable(ptr, count uint32) ([]string, error) {
	if err := m.fits(ptr, 4*uint64(count)); err != nil {
		return nil, err
	}
	table, err := m.read(ptr, 4*count)
	if err != nil {
		return nil, err
	}
	out := make([]string, count)
	for i := range out {
		s, err := m.ReadText(binary.LittleEndian.Uint32(table[4*i:]), 0)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
