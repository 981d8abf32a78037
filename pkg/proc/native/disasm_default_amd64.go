//go:build amd64

package native

import "github.com/ilian/rdbg/pkg/proc"

// DefaultDisassembler returns the x86asm-backed Disassembler on amd64,
// nil on architectures without one wired yet.
func DefaultDisassembler() proc.Disassembler { return X86Disassembler{} }
