package wasmhost

// Memory represents WASM linear memory
type Memory interface {
	Size() uint32
	Read(offset uint32, length uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
	ReadUint32Le(offset uint32) (uint32, bool)
	WriteUint32Le(offset uint32, value uint32) bool
}

// Region describes a span of linear memory handed across the host/guest boundary.
// Length counts payload bytes; a terminated region owns one more byte for the NUL.
type Region struct {
	Offset     uint32
	Length     uint32
	Terminated bool
}

// Extent returns the number of bytes the region occupies, terminator included.
func (r Region) Extent() uint32 {
	if r.Terminated {
		return r.Length + 1
	}
	return r.Length
}

// End returns the first offset past the region.
func (r Region) End() uint64 {
	return uint64(r.Offset) + uint64(r.Extent())
}

// Params returns the (offset, length) pair most guest exports expect.
func (r Region) Params() []uint64 {
	return []uint64{uint64(r.Offset), uint64(r.Length)}
}
