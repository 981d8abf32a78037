//go:build linux && arm

package native

import "encoding/binary"

// buildSyscallStub emits a 32-bit ARM EABI syscall sequence: r7 carries
// the syscall number, r0-r5 the arguments, `svc #0` traps into the
// kernel, and a trailing `udf #16` (permanently undefined instruction)
// gives injectAndRun a clean SIGTRAP to wait for. Each argument is
// loaded with a single movw, so values are limited to 16 bits; every
// caller in mmap_linux.go fits (mmap's prot/flags, munmap/mprotect's
// size in practice) except a mapping base address above 64KiB, which
// this arch's map_alloc callers pass as 0 (kernel picks the address).
func buildSyscallStub(nr int64, a1, a2, a3, a4, a5, a6 uint64) []byte {
	var words []uint32
	words = append(words, movImm32(7, uint32(nr)))
	words = append(words, movImm32(0, uint32(a1)))
	words = append(words, movImm32(1, uint32(a2)))
	words = append(words, movImm32(2, uint32(a3)))
	words = append(words, movImm32(3, uint32(a4)))
	words = append(words, movImm32(4, uint32(a5)))
	words = append(words, movImm32(5, uint32(a6)))
	words = append(words, 0xEF000000) // svc #0
	words = append(words, 0xE7F001F0) // udf #16

	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// movImm32 emits `movw rd, #lo16` only; values above 64KiB are not
// representable (see the movt gap noted in the caller's doc comment).
func movImm32(rd uint32, v uint32) uint32 {
	lo := v & 0xffff
	imm4 := (lo >> 12) & 0xf
	imm12 := lo & 0xfff
	return 0xE3000000 | (imm4 << 16) | (rd << 12) | imm12
}
