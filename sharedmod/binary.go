package sharedmod

// Minimal wasm binary writer. All section and body lengths are computed from
// the encoded bytes, never hand-counted.

type buffer struct {
	bytes []byte
}

func (b *buffer) byte1(v byte) {
	b.bytes = append(b.bytes, v)
}

func (b *buffer) raw(v []byte) {
	b.bytes = append(b.bytes, v...)
}

// u32 writes unsigned LEB128 encoding.
func (b *buffer) u32(v uint32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.byte1(byt)
		if v == 0 {
			break
		}
	}
}

// i32 writes signed LEB128 encoding.
func (b *buffer) i32(v int32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.byte1(byt)
			break
		}
		b.byte1(byt | 0x80)
	}
}

func (b *buffer) name(s string) {
	b.u32(uint32(len(s)))
	b.raw([]byte(s))
}

// section appends a section: id, content length, content.
func (b *buffer) section(id byte, content *buffer) {
	b.byte1(id)
	b.u32(uint32(len(content.bytes)))
	b.raw(content.bytes)
}

// Section ids
const (
	secType   = 1
	secImport = 2
	secFunc   = 3
	secMemory = 5
	secGlobal = 6
	secExport = 7
	secStart  = 8
	secCode   = 10
	secData   = 11
)

// Export kinds
const (
	kindFunc   = 0x00
	kindMemory = 0x02
	kindGlobal = 0x03
)

const valI32 = 0x7F

// Opcodes used by the reference module bodies
const (
	opBlock     = 0x02
	opLoop      = 0x03
	opIf        = 0x04
	opEnd       = 0x0B
	opBr        = 0x0C
	opBrIf      = 0x0D
	opReturn    = 0x0F
	opCall      = 0x10
	opLocalGet  = 0x20
	opLocalSet  = 0x21
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opLoad8U    = 0x2D
	opStore8    = 0x3A
	opI32Const  = 0x41
	opEqz       = 0x45
	opGeU       = 0x4F
	opLeU       = 0x4D
	opAdd       = 0x6A
	opSub       = 0x6B
	opMul       = 0x6C
	opAnd       = 0x71
	opOr        = 0x72
)

const blockEmpty = 0x40

// Instruction helpers keep the bodies readable.

func (b *buffer) op(code byte) { b.byte1(code) }

func (b *buffer) opIdx(code byte, idx uint32) {
	b.byte1(code)
	b.u32(idx)
}

func (b *buffer) constI32(v int32) {
	b.byte1(opI32Const)
	b.i32(v)
}

// memByte emits a byte-granular load/store with align=1 (exponent 0), offset 0.
func (b *buffer) memByte(code byte) {
	b.byte1(code)
	b.u32(0)
	b.u32(0)
}
