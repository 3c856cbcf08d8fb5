package wasmbuild

import (
	"bytes"
	"testing"
)

func TestLEB128(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"u32 zero", appendU32(nil, 0), []byte{0x00}},
		{"u32 127", appendU32(nil, 127), []byte{0x7f}},
		{"u32 128", appendU32(nil, 128), []byte{0x80, 0x01}},
		{"u32 624485", appendU32(nil, 624485), []byte{0xe5, 0x8e, 0x26}},
		{"s32 zero", appendS32(nil, 0), []byte{0x00}},
		{"s32 -1", appendS32(nil, -1), []byte{0x7f}},
		{"s32 63", appendS32(nil, 63), []byte{0x3f}},
		{"s32 64", appendS32(nil, 64), []byte{0xc0, 0x00}},
		{"s32 -123456", appendS32(nil, -123456), []byte{0xc0, 0xbb, 0x78}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("got %x, want %x", tt.got, tt.want)
			}
		})
	}
}

func TestEncode_Header(t *testing.T) {
	out := New().Encode()
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(out, want) {
		t.Errorf("empty module = %x, want %x", out, want)
	}
}

func TestAddType_Dedupes(t *testing.T) {
	m := New()
	a := m.AddType(FuncType{Params: []ValType{I32}, Results: []ValType{I32}})
	b := m.AddType(FuncType{Params: []ValType{I32}})
	c := m.AddType(FuncType{Params: []ValType{I32}, Results: []ValType{I32}})
	if a != c {
		t.Errorf("identical types got indices %d and %d", a, c)
	}
	if a == b {
		t.Error("distinct types share an index")
	}
	if len(m.Types) != 2 {
		t.Errorf("len(Types) = %d, want 2", len(m.Types))
	}
}

func TestFuncIndices(t *testing.T) {
	m := New()
	imp := m.ImportFunc("env", "time", []ValType{I32}, []ValType{I32})
	if imp != 0 {
		t.Errorf("import index = %d, want 0", imp)
	}
	if got := m.NextFuncIndex(); got != 1 {
		t.Errorf("NextFuncIndex = %d, want 1", got)
	}
	fn := m.Func("now", nil, []ValType{I32}, nil, NewCode().I32Const(16).Call(imp))
	if fn != 1 {
		t.Errorf("func index = %d, want 1", fn)
	}
}

func TestImportAfterFuncPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	m := New()
	m.Func("", nil, nil, nil, NewCode())
	m.ImportFunc("env", "late", nil, nil)
}

func TestEncode_Sections(t *testing.T) {
	m := New().WithMemory(1, "memory").WithData(16, []byte("hi"))
	m.Func("answer", nil, []ValType{I32}, nil, NewCode().I32Const(42))
	out := m.Encode()

	// Export names and data must appear verbatim.
	for _, s := range [][]byte{[]byte("memory"), []byte("answer"), []byte("hi")} {
		if !bytes.Contains(out, s) {
			t.Errorf("encoded module missing %q", s)
		}
	}

	// Sections appear in ascending id order after the header.
	var ids []byte
	for i := 8; i < len(out); {
		ids = append(ids, out[i])
		i++
		size, n := readU32(out[i:])
		i += n + int(size)
	}
	want := []byte{sectionType, sectionFunction, sectionMemory, sectionExport, sectionCode, sectionData}
	if !bytes.Equal(ids, want) {
		t.Errorf("section ids = %v, want %v", ids, want)
	}
}

func TestCode_Bytes(t *testing.T) {
	body := NewCode().LocalGet(0).I32Const(-1).I32Add().Bytes()
	want := []byte{opLocalGet, 0x00, opI32Const, 0x7f, opI32Add, opEnd}
	if !bytes.Equal(body, want) {
		t.Errorf("body = %x, want %x", body, want)
	}
}

func readU32(b []byte) (uint32, int) {
	var v uint32
	var shift uint
	for i, c := range b {
		v |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return v, len(b)
}
