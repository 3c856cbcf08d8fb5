package wasmbuild

import "encoding/binary"

type writer struct {
	buf []byte
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) len() int {
	return len(w.buf)
}

func (w *writer) byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) bytes(data []byte) {
	w.buf = append(w.buf, data...)
}

// u32 writes an unsigned LEB128 encoded uint32.
func (w *writer) u32(v uint32) {
	w.buf = appendU32(w.buf, v)
}

// s32 writes a signed LEB128 encoded int32.
func (w *writer) s32(v int32) {
	w.buf = appendS32(w.buf, v)
}

func (w *writer) u32le(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// name writes a UTF-8 encoded name (length-prefixed).
func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) valTypes(types []ValType) {
	w.u32(uint32(len(types)))
	for _, t := range types {
		w.byte(byte(t))
	}
}

func (w *writer) section(id byte, sec *writer) {
	w.byte(id)
	w.u32(uint32(sec.len()))
	w.bytes(sec.buf)
}

func appendU32(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

func appendS32(buf []byte, v int32) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}
