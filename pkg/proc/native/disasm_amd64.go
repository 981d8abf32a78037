//go:build amd64

package native

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/ilian/rdbg/pkg/proc"
)

// X86Disassembler implements proc.Disassembler using x86/x86asm, the
// same decoder the teacher's gdbserver.go collaborator reaches for when
// it needs instruction boundaries rather than a register map.
type X86Disassembler struct{}

func (X86Disassembler) InstrLen(code []byte, arch string, bits int) (int, error) {
	if arch != "amd64" && arch != "386" {
		return 0, fmt.Errorf("x86 disassembler does not support arch %q", arch)
	}
	mode := 64
	if bits == 32 {
		mode = 32
	}
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return 0, err
	}
	return inst.Len, nil
}

var _ proc.Disassembler = X86Disassembler{}
