package loader

import (
	"bufio"
	"bytes"
	"io"

	"github.com/wippyai/wasm-host/errors"
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// maxSectionID is the highest core section id (data count).
const maxSectionID = 12

// sectionReader consumes a module image as it arrives and checks framing
// (header, section ids, section sizes) section by section, so a broken
// stream is rejected before the whole body has been read.
type sectionReader struct {
	r        *bufio.Reader
	buf      bytes.Buffer
	sections int
}

func newSectionReader(r io.Reader) *sectionReader {
	return &sectionReader{r: bufio.NewReader(r)}
}

// readAll returns the complete image once every section has been framed.
func (s *sectionReader) readAll() ([]byte, error) {
	header := make([]byte, len(wasmHeader))
	if _, err := io.ReadFull(s.r, header); err != nil {
		return nil, s.fail("header", err)
	}
	if !bytes.Equal(header, wasmHeader) {
		return nil, errors.InvalidData(errors.PhaseLoad, "header", "not a core wasm module (bad magic or version)")
	}
	s.buf.Write(header)

	for {
		id, err := s.r.ReadByte()
		if err == io.EOF {
			return s.buf.Bytes(), nil
		}
		if err != nil {
			return nil, s.fail("section id", err)
		}
		if id > maxSectionID {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Resource("section id").
				Value(id).
				Detail("unknown section id %d after %d sections", id, s.sections).
				Build()
		}
		s.buf.WriteByte(id)

		size, err := s.readU32()
		if err != nil {
			return nil, s.fail("section size", err)
		}
		if _, err := io.CopyN(&s.buf, s.r, int64(size)); err != nil {
			return nil, s.fail("section body", err)
		}
		s.sections++
	}
}

// readU32 reads an unsigned LEB128 value and echoes its bytes to buf.
func (s *sectionReader) readU32() (uint32, error) {
	var v uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := s.r.ReadByte()
		if err != nil {
			return 0, err
		}
		s.buf.WriteByte(b)
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
	return 0, errors.InvalidData(errors.PhaseLoad, "leb128", "u32 overflow")
}

func (s *sectionReader) fail(what string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if e, ok := err.(*errors.Error); ok {
		return e
	}
	return errors.New(errors.PhaseLoad, errors.KindIO).
		Resource(what).
		Cause(err).
		Detail("stream ended after %d sections", s.sections).
		Build()
}
