//go:build linux && arm64

package native

import "encoding/binary"

// buildSyscallStub emits an aarch64 instruction sequence loading
// x8 (syscall number) and x0-x5 (args) via MOVZ/MOVK immediate loads,
// then `svc #0`, then `brk #0` as the trap injectAndRun waits for.
func buildSyscallStub(nr int64, a1, a2, a3, a4, a5, a6 uint64) []byte {
	var words []uint32
	words = append(words, movReg64(8, uint64(nr))...)
	words = append(words, movReg64(0, a1)...)
	words = append(words, movReg64(1, a2)...)
	words = append(words, movReg64(2, a3)...)
	words = append(words, movReg64(3, a4)...)
	words = append(words, movReg64(4, a5)...)
	words = append(words, movReg64(5, a6)...)
	words = append(words, 0xD4000001) // svc #0
	words = append(words, 0xD4200000) // brk #0

	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// movReg64 emits MOVZ followed by MOVK for each nonzero 16-bit chunk
// above the first, loading Xd with val.
func movReg64(rd uint32, val uint64) []uint32 {
	out := []uint32{0xD2800000 | (0 << 21) | (uint32(val&0xffff) << 5) | rd}
	for hw := uint32(1); hw < 4; hw++ {
		chunk := uint32((val >> (hw * 16)) & 0xffff)
		if chunk == 0 {
			continue
		}
		out = append(out, 0xF2800000|(hw<<21)|(chunk<<5)|rd)
	}
	return out
}
