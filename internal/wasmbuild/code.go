package wasmbuild

// Opcodes used by the assembler.
const (
	opBlock      = 0x02
	opLoop       = 0x03
	opIf         = 0x04
	opElse       = 0x05
	opEnd        = 0x0b
	opBr         = 0x0c
	opBrIf       = 0x0d
	opReturn     = 0x0f
	opCall       = 0x10
	opDrop       = 0x1a
	opLocalGet   = 0x20
	opLocalSet   = 0x21
	opLocalTee   = 0x22
	opI32Load    = 0x28
	opI32Load8U  = 0x2d
	opI32Store   = 0x36
	opI32Store8  = 0x3a
	opMemorySize = 0x3f
	opMemoryGrow = 0x40
	opI32Const   = 0x41
	opI32Eqz     = 0x45
	opI32Eq      = 0x46
	opI32Ne      = 0x47
	opI32LtS     = 0x48
	opI32LtU     = 0x49
	opI32GeS     = 0x4e
	opI32GeU     = 0x4f
	opI32Add     = 0x6a
	opI32Sub     = 0x6b
	opI32Mul     = 0x6c
	opI32RemS    = 0x6f
	opI32And     = 0x71
	opI32Shl     = 0x74
	opI32ShrU    = 0x76

	blockTypeEmpty = 0x40
)

// Code assembles a function body. Methods chain; Bytes appends the final end.
type Code struct {
	buf []byte
}

// NewCode returns an empty body.
func NewCode() *Code {
	return &Code{}
}

func (c *Code) op(b ...byte) *Code {
	c.buf = append(c.buf, b...)
	return c
}

func (c *Code) opU32(op byte, v uint32) *Code {
	c.buf = append(c.buf, op)
	c.buf = appendU32(c.buf, v)
	return c
}

func (c *Code) memarg(op byte, align, offset uint32) *Code {
	c.buf = append(c.buf, op)
	c.buf = appendU32(c.buf, align)
	c.buf = appendU32(c.buf, offset)
	return c
}

func (c *Code) Block() *Code          { return c.op(opBlock, blockTypeEmpty) }
func (c *Code) Loop() *Code           { return c.op(opLoop, blockTypeEmpty) }
func (c *Code) If() *Code             { return c.op(opIf, blockTypeEmpty) }
func (c *Code) Else() *Code           { return c.op(opElse) }
func (c *Code) End() *Code            { return c.op(opEnd) }
func (c *Code) Br(depth uint32) *Code { return c.opU32(opBr, depth) }
func (c *Code) BrIf(depth uint32) *Code {
	return c.opU32(opBrIf, depth)
}
func (c *Code) Return() *Code             { return c.op(opReturn) }
func (c *Code) Call(fn uint32) *Code      { return c.opU32(opCall, fn) }
func (c *Code) Drop() *Code               { return c.op(opDrop) }
func (c *Code) LocalGet(i uint32) *Code   { return c.opU32(opLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code   { return c.opU32(opLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code   { return c.opU32(opLocalTee, i) }
func (c *Code) I32Load(off uint32) *Code  { return c.memarg(opI32Load, 2, off) }
func (c *Code) I32Store(off uint32) *Code { return c.memarg(opI32Store, 2, off) }
func (c *Code) I32Load8U(off uint32) *Code {
	return c.memarg(opI32Load8U, 0, off)
}
func (c *Code) I32Store8(off uint32) *Code {
	return c.memarg(opI32Store8, 0, off)
}
func (c *Code) MemorySize() *Code { return c.op(opMemorySize, 0x00) }
func (c *Code) MemoryGrow() *Code { return c.op(opMemoryGrow, 0x00) }

// I32Const pushes a signed 32-bit constant.
func (c *Code) I32Const(v int32) *Code {
	c.buf = append(c.buf, opI32Const)
	c.buf = appendS32(c.buf, v)
	return c
}

func (c *Code) I32Eqz() *Code  { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code   { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code   { return c.op(opI32Ne) }
func (c *Code) I32LtS() *Code  { return c.op(opI32LtS) }
func (c *Code) I32LtU() *Code  { return c.op(opI32LtU) }
func (c *Code) I32GeS() *Code  { return c.op(opI32GeS) }
func (c *Code) I32GeU() *Code  { return c.op(opI32GeU) }
func (c *Code) I32Add() *Code  { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code  { return c.op(opI32Sub) }
func (c *Code) I32Mul() *Code  { return c.op(opI32Mul) }
func (c *Code) I32RemS() *Code { return c.op(opI32RemS) }
func (c *Code) I32And() *Code  { return c.op(opI32And) }
func (c *Code) I32Shl() *Code  { return c.op(opI32Shl) }
func (c *Code) I32ShrU() *Code { return c.op(opI32ShrU) }

// Bytes returns the body terminated by the function-level end.
func (c *Code) Bytes() []byte {
	out := make([]byte, len(c.buf), len(c.buf)+1)
	copy(out, c.buf)
	return append(out, opEnd)
}
