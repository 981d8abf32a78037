package proc

import "context"

// Assembler compiles a small source template into machine code for
// (arch, bits). The native backend does not consult it: its code
// injector encodes its syscall stubs itself (buildSyscallStub in each
// stub_<arch>.go). Assembler is the interface for hosts that want a real
// assembler (radare2's r_asm, an external `as`, etc.).
type Assembler interface {
	Assemble(arch string, bits int, source string) ([]byte, error)
}

// SyscallTable resolves a syscall name to its number for (arch, bits),
// e.g. "mmap" on amd64 vs "mmap2" on 386.
type SyscallTable interface {
	NumOf(name string, arch string, bits int) (int, error)
}

// Disassembler reports the byte length of the instruction at the front
// of code, used to verify that a completed single-step actually
// advanced the program counter by exactly one instruction's width
// rather than relying on the PC delta alone (§8: "PC advances strictly
// monotonically by the decoded instruction widths").
type Disassembler interface {
	InstrLen(code []byte, arch string, bits int) (int, error)
}

// ConsoleBreak lets a hosting application register an interrupt handler
// while Wait blocks, wired to SIGINT/Mach interrupt by the backend. No
// source-level signal handlers live in the core API (§9 redesign note);
// the backend is the only thing that touches signal.Notify/sigaction.
type ConsoleBreak interface {
	Push(cb func())
	Pop()
}

// Config exposes host-level toggles. Today this is just pdb.autoload
// (§4.2 rule 4, §6), kept as an interface rather than a bool field so
// the host can back it with a live config store. The Debugger stores it
// but does not call AutoloadPDB: no code path here loads symbols on
// library-load events.
type Config interface {
	AutoloadPDB() bool
}

// StaticConfig is a Config backed by a fixed value, for tests and
// standalone use.
type StaticConfig struct {
	Autoload bool
}

func (c StaticConfig) AutoloadPDB() bool { return c.Autoload }

// noopConsoleBreak is used when the host does not supply a ConsoleBreak.
type noopConsoleBreak struct{}

func (noopConsoleBreak) Push(func()) {}
func (noopConsoleBreak) Pop()        {}

// cancelToken is the explicit cancellation handle Wait hands to the
// backend, replacing source-level signal handlers (§9).
type cancelToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newCancelToken(ctx context.Context) cancelToken {
	c, cancel := context.WithCancel(ctx)
	return cancelToken{ctx: c, cancel: cancel}
}
