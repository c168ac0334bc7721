package sharedmod

import (
	"os"

	"github.com/leegramling/modhost"
)

// Version is the module's build-time version string, exposed through
// lib_version as (pointer, length) into module memory.
const Version = "1.0.0"

// versionOffset is where the version string lives in module memory. It sits
// below modhost.InputOffset, in the region reserved for module data.
const versionOffset = 16

// Function type indices in the emitted type section.
const (
	typeI32ToI32  = 0 // callback, lib_execute_callback
	typeI32ToNone = 1 // notify
	typeNoneToI32 = 2 // lib_initialize
	typeProcess   = 3 // lib_process_data
	typeNone      = 4 // lib_increment_counter, hooks
	typeVersion   = 5 // lib_version
)

// Function indices. Imports occupy the front of the index space.
const (
	fnCallback         = 0
	fnNotify           = 1
	fnInitialize       = 2
	fnProcessData      = 3
	fnExecuteCallback  = 4
	fnIncrementCounter = 5
	fnVersion          = 6
	fnOnLoad           = 7
	fnOnUnload         = 8
)

// Build emits the reference shared module as a WebAssembly binary.
//
// The module is the wasm rendition of the classic dlopen exercise library:
// it exports lib_initialize, lib_process_data (reverse + uppercase),
// lib_execute_callback, lib_increment_counter, lib_version, the mutable
// global lib_global_counter, and its linear memory. It imports the host
// callback and a notify function for lifecycle notices. The start section
// is the load hook; lib_on_unload is called by the engine on release.
func Build() []byte {
	mod := &buffer{}
	mod.raw([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}) // magic + version

	mod.section(secType, typeSection())
	mod.section(secImport, importSection())
	mod.section(secFunc, funcSection())
	mod.section(secMemory, memorySection())
	mod.section(secGlobal, globalSection())
	mod.section(secExport, exportSection())
	mod.section(secStart, startSection())
	mod.section(secCode, codeSection())
	mod.section(secData, dataSection())

	return mod.bytes
}

// WriteFile emits the reference module binary to path.
func WriteFile(path string) error {
	return os.WriteFile(path, Build(), 0o644)
}

func typeSection() *buffer {
	sec := &buffer{}
	types := []struct {
		params  int
		results int
	}{
		{1, 1}, // typeI32ToI32
		{1, 0}, // typeI32ToNone
		{0, 1}, // typeNoneToI32
		{4, 1}, // typeProcess
		{0, 0}, // typeNone
		{0, 2}, // typeVersion
	}
	sec.u32(uint32(len(types)))
	for _, t := range types {
		sec.byte1(0x60)
		sec.u32(uint32(t.params))
		for i := 0; i < t.params; i++ {
			sec.byte1(valI32)
		}
		sec.u32(uint32(t.results))
		for i := 0; i < t.results; i++ {
			sec.byte1(valI32)
		}
	}
	return sec
}

func importSection() *buffer {
	sec := &buffer{}
	sec.u32(2)

	sec.name(modhost.HostModule)
	sec.name(modhost.ImportCallback)
	sec.byte1(kindFunc)
	sec.u32(typeI32ToI32)

	sec.name(modhost.HostModule)
	sec.name(modhost.ImportNotify)
	sec.byte1(kindFunc)
	sec.u32(typeI32ToNone)

	return sec
}

func funcSection() *buffer {
	sec := &buffer{}
	typeIndices := []uint32{
		typeNoneToI32, // lib_initialize
		typeProcess,   // lib_process_data
		typeI32ToI32,  // lib_execute_callback
		typeNone,      // lib_increment_counter
		typeVersion,   // lib_version
		typeNone,      // load hook
		typeNone,      // lib_on_unload
	}
	sec.u32(uint32(len(typeIndices)))
	for _, ti := range typeIndices {
		sec.u32(ti)
	}
	return sec
}

func memorySection() *buffer {
	sec := &buffer{}
	sec.u32(1)
	sec.byte1(0x00) // limits: min only
	sec.u32(1)      // one page
	return sec
}

func globalSection() *buffer {
	sec := &buffer{}
	sec.u32(1)
	sec.byte1(valI32)
	sec.byte1(0x01) // mutable
	sec.constI32(0)
	sec.op(opEnd)
	return sec
}

func exportSection() *buffer {
	sec := &buffer{}
	exports := []struct {
		name string
		kind byte
		idx  uint32
	}{
		{modhost.SymbolMemory, kindMemory, 0},
		{modhost.SymbolGlobalCounter, kindGlobal, 0},
		{modhost.SymbolInitialize, kindFunc, fnInitialize},
		{modhost.SymbolProcessData, kindFunc, fnProcessData},
		{modhost.SymbolExecuteCallback, kindFunc, fnExecuteCallback},
		{modhost.SymbolIncrementCounter, kindFunc, fnIncrementCounter},
		{modhost.SymbolVersion, kindFunc, fnVersion},
		{modhost.SymbolOnUnload, kindFunc, fnOnUnload},
	}
	sec.u32(uint32(len(exports)))
	for _, e := range exports {
		sec.name(e.name)
		sec.byte1(e.kind)
		sec.u32(e.idx)
	}
	return sec
}

func startSection() *buffer {
	sec := &buffer{}
	sec.u32(fnOnLoad)
	return sec
}

func codeSection() *buffer {
	bodies := []*buffer{
		initializeBody(),
		processDataBody(),
		executeCallbackBody(),
		incrementCounterBody(),
		versionBody(),
		notifyBody(modhost.NotifyLoad),
		notifyBody(modhost.NotifyUnload),
	}

	sec := &buffer{}
	sec.u32(uint32(len(bodies)))
	for _, body := range bodies {
		sec.u32(uint32(len(body.bytes)))
		sec.raw(body.bytes)
	}
	return sec
}

func dataSection() *buffer {
	sec := &buffer{}
	sec.u32(1)
	sec.u32(0) // active segment, memory 0
	sec.constI32(versionOffset)
	sec.op(opEnd)
	sec.u32(uint32(len(Version)))
	sec.raw([]byte(Version))
	return sec
}

// noLocals starts a function body with an empty locals vector.
func noLocals() *buffer {
	b := &buffer{}
	b.u32(0)
	return b
}

// initializeBody emits the startup notice and returns status 0.
func initializeBody() *buffer {
	b := noLocals()
	b.constI32(modhost.NotifyInit)
	b.opIdx(opCall, fnNotify)
	b.constI32(0)
	b.op(opEnd)
	return b
}

// processDataBody reverses the input bytes, uppercases ASCII lowercase
// letters, NUL-terminates the output, and returns the byte count.
// Returns -1 when a pointer is null or capacity is zero, -2 when the input
// does not fit the output capacity (terminator included).
//
// Params: 0=in, 1=len, 2=out, 3=cap. Locals: 4=i, 5=c.
func processDataBody() *buffer {
	const (
		pIn  = 0
		pLen = 1
		pOut = 2
		pCap = 3
		lI   = 4
		lC   = 5
	)

	b := &buffer{}
	b.u32(1) // one run of locals
	b.u32(2)
	b.byte1(valI32)

	// if in == 0 || out == 0 || cap == 0 { return -1 }
	b.opIdx(opLocalGet, pIn)
	b.op(opEqz)
	b.opIdx(opLocalGet, pOut)
	b.op(opEqz)
	b.op(opOr)
	b.opIdx(opLocalGet, pCap)
	b.op(opEqz)
	b.op(opOr)
	b.op(opIf)
	b.byte1(blockEmpty)
	b.constI32(-1)
	b.op(opReturn)
	b.op(opEnd)

	// if len >= cap { return -2 }
	b.opIdx(opLocalGet, pLen)
	b.opIdx(opLocalGet, pCap)
	b.op(opGeU)
	b.op(opIf)
	b.byte1(blockEmpty)
	b.constI32(-2)
	b.op(opReturn)
	b.op(opEnd)

	// i = 0
	b.constI32(0)
	b.opIdx(opLocalSet, lI)

	b.op(opBlock)
	b.byte1(blockEmpty)
	b.op(opLoop)
	b.byte1(blockEmpty)

	// if i >= len break
	b.opIdx(opLocalGet, lI)
	b.opIdx(opLocalGet, pLen)
	b.op(opGeU)
	b.opIdx(opBrIf, 1)

	// c = mem[in + len - 1 - i]
	b.opIdx(opLocalGet, pIn)
	b.opIdx(opLocalGet, pLen)
	b.op(opAdd)
	b.constI32(1)
	b.op(opSub)
	b.opIdx(opLocalGet, lI)
	b.op(opSub)
	b.memByte(opLoad8U)
	b.opIdx(opLocalSet, lC)

	// if 'a' <= c <= 'z' { c -= 32 }
	b.opIdx(opLocalGet, lC)
	b.constI32('a')
	b.op(opGeU)
	b.opIdx(opLocalGet, lC)
	b.constI32('z')
	b.op(opLeU)
	b.op(opAnd)
	b.op(opIf)
	b.byte1(blockEmpty)
	b.opIdx(opLocalGet, lC)
	b.constI32(32)
	b.op(opSub)
	b.opIdx(opLocalSet, lC)
	b.op(opEnd)

	// mem[out + i] = c
	b.opIdx(opLocalGet, pOut)
	b.opIdx(opLocalGet, lI)
	b.op(opAdd)
	b.opIdx(opLocalGet, lC)
	b.memByte(opStore8)

	// i++
	b.opIdx(opLocalGet, lI)
	b.constI32(1)
	b.op(opAdd)
	b.opIdx(opLocalSet, lI)

	b.opIdx(opBr, 0)
	b.op(opEnd) // loop
	b.op(opEnd) // block

	// mem[out + len] = 0
	b.opIdx(opLocalGet, pOut)
	b.opIdx(opLocalGet, pLen)
	b.op(opAdd)
	b.constI32(0)
	b.memByte(opStore8)

	// return len
	b.opIdx(opLocalGet, pLen)
	b.op(opEnd)
	return b
}

// executeCallbackBody computes value*10 + (value+10) and hands the result to
// the imported host callback, returning whatever the callback returns.
//
// The original library's comment claims the transform is "a*b + a+b", but
// the code it describes always ran with b fixed at 10, i.e. value*11 + 10.
// The arithmetic is kept, not the comment.
func executeCallbackBody() *buffer {
	b := noLocals()
	b.opIdx(opLocalGet, 0)
	b.constI32(10)
	b.op(opMul)
	b.opIdx(opLocalGet, 0)
	b.constI32(10)
	b.op(opAdd)
	b.op(opAdd)
	b.opIdx(opCall, fnCallback)
	b.op(opEnd)
	return b
}

// incrementCounterBody adds one to the exported counter global. Wraps on
// overflow per i32 arithmetic.
func incrementCounterBody() *buffer {
	b := noLocals()
	b.op(opGlobalGet)
	b.u32(0)
	b.constI32(1)
	b.op(opAdd)
	b.op(opGlobalSet)
	b.u32(0)
	b.op(opEnd)
	return b
}

// versionBody returns (pointer, length) of the version string.
func versionBody() *buffer {
	b := noLocals()
	b.constI32(versionOffset)
	b.constI32(int32(len(Version)))
	b.op(opEnd)
	return b
}

// notifyBody emits a single lifecycle notice to the host.
func notifyBody(code int32) *buffer {
	b := noLocals()
	b.constI32(code)
	b.opIdx(opCall, fnNotify)
	b.op(opEnd)
	return b
}
