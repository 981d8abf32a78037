//go:build linux && amd64

package native

import "encoding/binary"

// buildSyscallStub emits a typed x86-64 instruction sequence loading
// rax/rdi/rsi/rdx/r10/r8/r9 with immediates, issuing `syscall`, then
// `int3` so injectAndRun's wait4 sees a clean SIGTRAP at a known offset.
// This is a small hand-built encoder rather than a text-templated
// assembler, per §9's design note that code injection should use typed
// stub builders. a6 is only needed by mmap's offset argument; every
// other caller passes 0.
func buildSyscallStub(nr int64, a1, a2, a3, a4, a5, a6 uint64) []byte {
	buf := make([]byte, 0, 80)
	buf = append(buf, movImm64(0xb8, uint64(nr))...) // mov rax, nr
	buf = append(buf, movImm64(0xbf, a1)...)         // mov rdi, a1
	buf = append(buf, movImm64(0xbe, a2)...)         // mov rsi, a2
	buf = append(buf, movImm64(0xba, a3)...)         // mov rdx, a3
	buf = append(buf, movImm64R10(a4)...)            // mov r10, a4
	buf = append(buf, movImm64R8(a5)...)             // mov r8, a5
	buf = append(buf, movImm64R9(a6)...)             // mov r9, a6
	buf = append(buf, 0x0f, 0x05)                    // syscall
	buf = append(buf, 0xcc)                          // int3
	return buf
}

// movImm64 encodes `mov <reg>, imm64` for rax/rdi/rsi/rdx, whose REX.W
// + opcode byte (0xb8 + register index) takes an 8-byte little-endian
// immediate.
func movImm64(opcode byte, v uint64) []byte {
	out := make([]byte, 10)
	out[0] = 0x48 // REX.W
	out[1] = opcode
	binary.LittleEndian.PutUint64(out[2:], v)
	return out
}

func movImm64R10(v uint64) []byte {
	out := make([]byte, 10)
	out[0] = 0x49 // REX.WB
	out[1] = 0xba
	binary.LittleEndian.PutUint64(out[2:], v)
	return out
}

func movImm64R8(v uint64) []byte {
	out := make([]byte, 10)
	out[0] = 0x49 // REX.WB
	out[1] = 0xb8
	binary.LittleEndian.PutUint64(out[2:], v)
	return out
}

func movImm64R9(v uint64) []byte {
	out := make([]byte, 10)
	out[0] = 0x49 // REX.WB
	out[1] = 0xb9
	binary.LittleEndian.PutUint64(out[2:], v)
	return out
}
