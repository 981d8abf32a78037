//go:build !amd64

package native

import "github.com/ilian/rdbg/pkg/proc"

// DefaultDisassembler is nil on architectures without a disassembler
// collaborator wired yet (arm64, arm).
func DefaultDisassembler() proc.Disassembler { return nil }
