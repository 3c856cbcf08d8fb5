// Package wasmbuild encodes small core WebAssembly modules.
//
// It covers exactly what the demo guests and tests need: function imports,
// one linear memory, exported functions, active data segments and a start
// function. Function bodies are assembled with Code.
package wasmbuild

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

const (
	magic   = 0x6d736100 // \0asm
	version = 1

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionStart    = 8
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02

	funcTypeByte = 0x60
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) equal(o FuncType) bool {
	if len(ft.Params) != len(o.Params) || len(ft.Results) != len(o.Results) {
		return false
	}
	for i := range ft.Params {
		if ft.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range ft.Results {
		if ft.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Import is a function import.
type Import struct {
	Module string
	Name   string
	Type   uint32
}

// Func is a defined function.
type Func struct {
	Export string
	Locals []ValType
	Body   []byte
	Type   uint32
}

// Memory describes the single linear memory.
type Memory struct {
	Max    *uint32
	Export string
	Min    uint32
}

// Data is an active data segment for memory 0.
type Data struct {
	Init   []byte
	Offset uint32
}

// Module is a module under construction.
type Module struct {
	Memory  *Memory
	Start   *uint32
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Data    []Data
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

// AddType returns the index of ft, appending it if not present.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// ImportFunc declares a function import and returns its function index.
// All imports must be declared before the first Func call.
func (m *Module) ImportFunc(module, name string, params, results []ValType) uint32 {
	if len(m.Funcs) > 0 {
		panic("wasmbuild: imports must precede defined functions")
	}
	typeIdx := m.AddType(FuncType{Params: params, Results: results})
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Type: typeIdx})
	return uint32(len(m.Imports) - 1)
}

// Func defines a function and returns its function index.
// A non-empty export name exports it.
func (m *Module) Func(export string, params, results, locals []ValType, body *Code) uint32 {
	typeIdx := m.AddType(FuncType{Params: params, Results: results})
	m.Funcs = append(m.Funcs, Func{
		Export: export,
		Type:   typeIdx,
		Locals: locals,
		Body:   body.Bytes(),
	})
	return uint32(len(m.Imports) + len(m.Funcs) - 1)
}

// NextFuncIndex returns the index the next defined function will get.
func (m *Module) NextFuncIndex() uint32 {
	return uint32(len(m.Imports) + len(m.Funcs))
}

// WithMemory declares memory 0 with min pages, exported under name when non-empty.
func (m *Module) WithMemory(minPages uint32, export string) *Module {
	m.Memory = &Memory{Min: minPages, Export: export}
	return m
}

// WithData adds an active data segment.
func (m *Module) WithData(offset uint32, init []byte) *Module {
	m.Data = append(m.Data, Data{Offset: offset, Init: init})
	return m
}

// Encode encodes the module to WebAssembly binary format
func (m *Module) Encode() []byte {
	w := newWriter()

	w.u32le(magic)
	w.u32le(version)

	if len(m.Types) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.byte(funcTypeByte)
			sec.valTypes(ft.Params)
			sec.valTypes(ft.Results)
		}
		w.section(sectionType, sec)
	}

	if len(m.Imports) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.name(imp.Module)
			sec.name(imp.Name)
			sec.byte(kindFunc)
			sec.u32(imp.Type)
		}
		w.section(sectionImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			sec.u32(f.Type)
		}
		w.section(sectionFunction, sec)
	}

	if m.Memory != nil {
		sec := newWriter()
		sec.u32(1)
		if m.Memory.Max != nil {
			sec.byte(0x01)
			sec.u32(m.Memory.Min)
			sec.u32(*m.Memory.Max)
		} else {
			sec.byte(0x00)
			sec.u32(m.Memory.Min)
		}
		w.section(sectionMemory, sec)
	}

	var exports int
	if m.Memory != nil && m.Memory.Export != "" {
		exports++
	}
	for _, f := range m.Funcs {
		if f.Export != "" {
			exports++
		}
	}
	if exports > 0 {
		sec := newWriter()
		sec.u32(uint32(exports))
		if m.Memory != nil && m.Memory.Export != "" {
			sec.name(m.Memory.Export)
			sec.byte(kindMemory)
			sec.u32(0)
		}
		for i, f := range m.Funcs {
			if f.Export == "" {
				continue
			}
			sec.name(f.Export)
			sec.byte(kindFunc)
			sec.u32(uint32(len(m.Imports) + i))
		}
		w.section(sectionExport, sec)
	}

	if m.Start != nil {
		sec := newWriter()
		sec.u32(*m.Start)
		w.section(sectionStart, sec)
	}

	if len(m.Funcs) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			body := newWriter()
			body.u32(uint32(len(f.Locals)))
			for _, l := range f.Locals {
				body.u32(1)
				body.byte(byte(l))
			}
			body.bytes(f.Body)
			sec.u32(uint32(body.len()))
			sec.bytes(body.buf)
		}
		w.section(sectionCode, sec)
	}

	if len(m.Data) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.u32(0)
			sec.byte(opI32Const)
			sec.s32(int32(d.Offset))
			sec.byte(opEnd)
			sec.u32(uint32(len(d.Init)))
			sec.bytes(d.Init)
		}
		w.section(sectionData, sec)
	}

	return w.buf
}
